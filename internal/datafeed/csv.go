package datafeed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"chan-analyzer/internal/errors"
	"chan-analyzer/internal/logging"
	"chan-analyzer/internal/models"
)

// csvTime accepts the date formats common in exported OHLC files.
type csvTime struct {
	time.Time
}

var csvTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102",
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (t *csvTime) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = ts
			return nil
		}
	}
	// Epoch seconds or milliseconds.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
		if n > 1e11 {
			t.Time = time.UnixMilli(n).UTC()
		} else {
			t.Time = time.Unix(n, 0).UTC()
		}
		return nil
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

type csvBar struct {
	Timestamp csvTime `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

// headerAliases maps accepted column names onto the canonical ones.
var headerAliases = map[string]string{
	"date":       "timestamp",
	"datetime":   "timestamp",
	"time":       "timestamp",
	"trade_date": "timestamp",
	"日期":         "timestamp",
	"开盘":         "open",
	"最高":         "high",
	"最低":         "low",
	"收盘":         "close",
	"vol":        "volume",
	"成交量":        "volume",
}

var requiredColumns = []string{"timestamp", "open", "high", "low", "close"}

// normalizeHeader rewrites the first line so column matching ignores case, spacing
// and the aliases above. A UTF-8 byte order mark is dropped.
func normalizeHeader(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	end := bytes.IndexByte(data, '\n')
	if end < 0 {
		end = len(data)
	}
	header := strings.TrimRight(string(data[:end]), "\r")
	if strings.TrimSpace(header) == "" {
		return nil, errors.NewInputError("header", -1, "missing CSV header")
	}

	cols := strings.Split(header, ",")
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		name := strings.ToLower(strings.Trim(strings.TrimSpace(c), `"`))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		cols[i] = name
		seen[name] = true
	}
	for _, req := range requiredColumns {
		if !seen[req] {
			return nil, errors.NewInputError("header", -1, fmt.Sprintf("missing column %q", req))
		}
	}

	var out bytes.Buffer
	out.Grow(len(data))
	out.WriteString(strings.Join(cols, ","))
	out.Write(data[end:])
	return out.Bytes(), nil
}

// ParseCSV reads OHLCV rows and returns them sorted by timestamp.
// Unknown columns are ignored; a missing volume column reads as zero.
func ParseCSV(r io.Reader) ([]models.Candle, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV")
	}
	data, err = normalizeHeader(data)
	if err != nil {
		return nil, err
	}

	var rows []*csvBar
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, errors.NewInputError("csv", -1, err.Error())
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, models.Candle{
			Timestamp: row.Timestamp.Time,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// ReadCSVFile parses the CSV file at path.
func ReadCSVFile(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	candles, err := ParseCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return candles, nil
}

// CSVSource serves bars from a single CSV file. The request symbol is ignored.
type CSVSource struct {
	Path string
}

// NewCSVSource creates a source reading path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Bars implements Source.
func (s *CSVSource) Bars(ctx context.Context, req Request) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	candles, err := ReadCSVFile(s.Path)
	if err != nil {
		return nil, err
	}

	filtered := candles[:0]
	for _, c := range candles {
		if inRange(c.Timestamp, req.From, req.To) {
			filtered = append(filtered, c)
		}
	}

	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("path", s.Path).
		Int("rows", len(candles)).
		Int("bars", len(filtered)).
		Dur("duration", time.Since(start)).
		Msg("CSV loaded")

	return filtered, nil
}
