// Package docs is the OpenAPI description served at /swagger in dev mode.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/login": {
            "post": {"tags": ["auth"], "summary": "Issue a JWT", "responses": {"200": {"description": "OK"}, "401": {"description": "invalid credentials"}}}
        },
        "/auth/register": {
            "post": {"tags": ["auth"], "summary": "Create a customer account", "responses": {"201": {"description": "Created"}, "409": {"description": "already exists"}}}
        },
        "/products": {
            "get": {"tags": ["products"], "summary": "List products", "responses": {"200": {"description": "OK"}}}
        },
        "/products/{id}": {
            "get": {"tags": ["products"], "summary": "Get a product", "responses": {"200": {"description": "OK"}, "404": {"description": "NOT_FOUND"}}}
        },
        "/availability/{product_id}": {
            "get": {
                "tags": ["bookings"],
                "summary": "Check whether a product is free over [start, end)",
                "description": "available counts confirmed and active bookings only. held_by_pending > 0 means a recent pending booking still holds the dates and POST /bookings will return SLOT_UNAVAILABLE until the hold lapses.",
                "parameters": [
                    {"type": "integer", "name": "product_id", "in": "path", "required": true},
                    {"type": "string", "name": "start", "in": "query", "required": true},
                    {"type": "string", "name": "end", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "INVALID_INTERVAL"}, "422": {"description": "PRODUCT_NOT_RENTABLE"}}
            }
        },
        "/bookings": {
            "get": {"security": [{"Bearer": []}], "tags": ["bookings"], "summary": "List my bookings", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"Bearer": []}], "tags": ["bookings"], "summary": "Create a pending booking", "responses": {"201": {"description": "Created"}, "409": {"description": "SLOT_UNAVAILABLE"}, "429": {"description": "RATE_LIMITED"}}}
        },
        "/bookings/{id}": {
            "get": {"security": [{"Bearer": []}], "tags": ["bookings"], "summary": "Get a booking by id or booking number", "responses": {"200": {"description": "OK"}, "403": {"description": "UNAUTHORIZED"}}}
        },
        "/bookings/{id}/return": {
            "post": {"security": [{"Bearer": []}], "tags": ["bookings"], "summary": "Return a rental and settle fees", "responses": {"200": {"description": "OK"}, "409": {"description": "INVALID_TRANSITION"}}}
        },
        "/bookings/{id}/cancel": {
            "post": {"security": [{"Bearer": []}], "tags": ["bookings"], "summary": "Cancel a pending or confirmed booking", "responses": {"200": {"description": "OK"}, "409": {"description": "INVALID_TRANSITION"}}}
        },
        "/admin/bookings": {
            "get": {"security": [{"Bearer": []}], "tags": ["admin"], "summary": "List bookings with status stats", "responses": {"200": {"description": "OK"}}}
        },
        "/admin/bookings/export": {
            "get": {"security": [{"Bearer": []}], "tags": ["admin"], "summary": "Export bookings as CSV (utf-8 or shift_jis)", "responses": {"200": {"description": "OK"}}}
        },
        "/admin/bookings/sweep-overdue": {
            "post": {"security": [{"Bearer": []}], "tags": ["admin"], "summary": "Flag overdue rentals now", "responses": {"200": {"description": "OK"}}}
        },
        "/admin/bookings/{id}/confirm": {
            "post": {"security": [{"Bearer": []}], "tags": ["admin"], "summary": "Confirm a pending booking", "responses": {"200": {"description": "OK"}, "409": {"description": "SLOT_UNAVAILABLE or INVALID_TRANSITION"}}}
        },
        "/admin/bookings/{id}/activate": {
            "post": {"security": [{"Bearer": []}], "tags": ["admin"], "summary": "Hand the item over", "responses": {"200": {"description": "OK"}}}
        },
        "/admin/bookings/{id}/payment": {
            "post": {"security": [{"Bearer": []}], "tags": ["admin"], "summary": "Record payment status", "responses": {"200": {"description": "OK"}}}
        },
        "/admin/products": {
            "post": {"security": [{"Bearer": []}], "tags": ["admin"], "summary": "Create a product", "responses": {"201": {"description": "Created"}}}
        },
        "/admin/products/{id}": {
            "put": {"security": [{"Bearer": []}], "tags": ["admin"], "summary": "Update a product", "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Rental API",
	Description:      "Rental booking and availability",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
