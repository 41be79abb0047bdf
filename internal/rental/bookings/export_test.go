package bookings

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func TestParseCSVEncoding(t *testing.T) {
	for in, want := range map[string]CSVEncoding{
		"": CSVUTF8, "UTF-8": CSVUTF8, "shift_jis": CSVShiftJIS, "Shift-JIS": CSVShiftJIS, "sjis": CSVShiftJIS,
	} {
		got, err := ParseCSVEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCSVEncoding("latin1")
	assert.Equal(t, CodeInvalidArgument, codeOf(t, err))
}

func TestExportBookingsCSV(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.CreateBooking(ctx, alice, CreateBookingRequest{
		ProductID: 1, StartDate: at(1), EndDate: at(3),
		DeliveryAddress: &DeliveryAddress{Name: "山田 太郎", Phone: "090-0000-0000", Address: "1-2-3", City: "東京", ZipCode: "100-0001"},
	})
	require.NoError(t, err)
	f.create(t, bob, 3, Interval{Start: at(1), End: at(2)})

	_, err = f.svc.ExportBookingsCSV(ctx, alice, Filter{}, CSVUTF8)
	assert.Equal(t, CodeUnauthorized, codeOf(t, err))

	out, err := f.svc.ExportBookingsCSV(ctx, admin, Filter{}, CSVUTF8)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "alice", records[1][2])
	assert.Equal(t, "2000.00", records[1][10])
	assert.Equal(t, "山田 太郎", records[1][16])
	assert.Equal(t, "東京", records[1][17])

	sjis, err := f.svc.ExportBookingsCSV(ctx, admin, Filter{}, CSVShiftJIS)
	require.NoError(t, err)
	assert.NotEqual(t, out, sjis)
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(sjis), japanese.ShiftJIS.NewDecoder()))
	require.NoError(t, err)
	assert.Equal(t, string(out), string(decoded))
}

func TestExportBookingsCSVPagesThroughEverything(t *testing.T) {
	f := newFixture()
	n := exportPageSize + 3
	for i := 0; i < n; i++ {
		seed(f.repo, Booking{ProductID: 1, CustomerID: "c", Interval: Interval{Start: at(i), End: at(i + 1)}, Status: StatusPending})
	}
	out, err := f.svc.ExportBookingsCSV(context.Background(), admin, Filter{}, CSVUTF8)
	require.NoError(t, err)
	assert.Equal(t, n+1, strings.Count(string(out), "\n"))
}
