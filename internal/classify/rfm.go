package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

// RFMSegmenter computes Recency/Frequency/Monetary quantile scores per
// customer from a transaction table and maps the combined score onto a
// named segment. Quantile boundaries come from the full table, so the
// segmentation is deterministic for a given input.
type RFMSegmenter struct {
	customerColumn string
	dateColumn     string
	valueColumn    string
	referenceDate  time.Time // zero means "max date in the data"
	logger         *slog.Logger
}

// RFMConfig configures an RFMSegmenter.
type RFMConfig struct {
	CustomerColumn string    `yaml:"customer_column" validate:"required"`
	DateColumn     string    `yaml:"date_column" validate:"required"`
	ValueColumn    string    `yaml:"value_column" validate:"required"`
	ReferenceDate  time.Time `yaml:"reference_date"`
}

// segmentBins maps the summed RFM score (3..15) onto named segments,
// upper bound inclusive.
var segmentBins = []struct {
	max  int
	name string
}{
	{6, "At Risk"},
	{9, "Needs Attention"},
	{12, "Loyal"},
	{15, "Champions"},
}

// NewRFMSegmenter creates an RFM segmenter.
func NewRFMSegmenter(cfg RFMConfig, logger *slog.Logger) (*RFMSegmenter, error) {
	if cfg.CustomerColumn == "" || cfg.DateColumn == "" || cfg.ValueColumn == "" {
		return nil, pipeerrors.ClassificationError("classify",
			"rfm segmenter requires customer, date and value columns")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RFMSegmenter{
		customerColumn: cfg.CustomerColumn,
		dateColumn:     cfg.DateColumn,
		valueColumn:    cfg.ValueColumn,
		referenceDate:  cfg.ReferenceDate,
		logger:         logger,
	}, nil
}

// Name implements Classifier.
func (s *RFMSegmenter) Name() string {
	return "rfm"
}

type rfmRow struct {
	customer string
	lastSeen time.Time
	recency  float64 // days since last purchase
	freq     float64
	monetary float64
}

// Classify aggregates transactions per customer and returns one row
// per customer with R/F/M values, 1-5 scores, the concatenated segment
// code and the named segment.
func (s *RFMSegmenter) Classify(ctx context.Context, t *table.Table) (*table.Table, error) {
	for _, name := range []string{s.customerColumn, s.dateColumn, s.valueColumn} {
		if !t.HasColumn(name) {
			return nil, pipeerrors.ClassificationError("classify",
				fmt.Sprintf("rfm input column %q not found", name))
		}
	}
	if t.NumRows() == 0 {
		return nil, pipeerrors.ClassificationError("classify", "rfm segmenter requires a non-empty table")
	}

	byCustomer := make(map[string]*rfmRow)
	var maxDate time.Time
	for i := 0; i < t.NumRows(); i++ {
		rec := t.Row(i)
		customer := rec.String(s.customerColumn)
		ts, ok := rec.Time(s.dateColumn)
		if !ok {
			continue // rows without a purchase date carry no signal
		}
		value, _ := rec.Float(s.valueColumn)

		row := byCustomer[customer]
		if row == nil {
			row = &rfmRow{customer: customer}
			byCustomer[customer] = row
		}
		if ts.After(row.lastSeen) {
			row.lastSeen = ts
		}
		row.freq++
		row.monetary += value
		if ts.After(maxDate) {
			maxDate = ts
		}
	}
	if len(byCustomer) == 0 {
		return nil, pipeerrors.ClassificationError("classify",
			fmt.Sprintf("rfm segmenter found no parsable dates in column %q", s.dateColumn))
	}

	reference := s.referenceDate
	if reference.IsZero() {
		reference = maxDate
	}

	rows := make([]*rfmRow, 0, len(byCustomer))
	for _, row := range byCustomer {
		row.recency = reference.Sub(row.lastSeen).Hours() / 24
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].customer < rows[j].customer })

	recencies := make([]float64, len(rows))
	freqs := make([]float64, len(rows))
	monies := make([]float64, len(rows))
	for i, row := range rows {
		recencies[i] = row.recency
		freqs[i] = row.freq
		monies[i] = row.monetary
	}
	rBounds := quintileBounds(recencies)
	fBounds := quintileBounds(freqs)
	mBounds := quintileBounds(monies)

	out := table.New(
		table.NewColumn(s.customerColumn, table.KindString),
		table.NewColumn("recency_days", table.KindFloat),
		table.NewColumn("frequency", table.KindInt),
		table.NewColumn("monetary", table.KindFloat),
		table.NewColumn("r_score", table.KindInt),
		table.NewColumn("f_score", table.KindInt),
		table.NewColumn("m_score", table.KindInt),
		table.NewColumn("rfm_score", table.KindInt),
		table.NewColumn("segment_code", table.KindString),
		table.NewColumn("segment", table.KindString),
	)

	for _, row := range rows {
		// Low recency is good, so the recency score is reversed.
		r := 6 - bucket(row.recency, rBounds)
		f := bucket(row.freq, fBounds)
		m := bucket(row.monetary, mBounds)
		total := r + f + m
		if err := out.AppendRow([]any{
			row.customer,
			row.recency,
			int64(row.freq),
			row.monetary,
			int64(r), int64(f), int64(m), int64(total),
			fmt.Sprintf("%d%d%d", r, f, m),
			segmentName(total),
		}); err != nil {
			return nil, pipeerrors.ClassificationError("classify", err.Error())
		}
	}

	s.logger.InfoContext(ctx, "rfm segmentation completed",
		slog.Int("customers", len(rows)),
		slog.Time("reference_date", reference))
	return out, nil
}

// quintileBounds returns the 20/40/60/80 percentile boundaries of the
// full value set.
func quintileBounds(values []float64) [4]float64 {
	return [4]float64{
		quantileOf(values, 0.2),
		quantileOf(values, 0.4),
		quantileOf(values, 0.6),
		quantileOf(values, 0.8),
	}
}

// bucket scores a value 1-5 against quintile boundaries. A uniform
// value set yields identical boundaries, so every value lands in the
// first bucket and no false segmentation appears.
func bucket(v float64, bounds [4]float64) int {
	score := 1
	for _, b := range bounds {
		if v > b {
			score++
		}
	}
	return score
}

func segmentName(score int) string {
	for _, bin := range segmentBins {
		if score <= bin.max {
			return bin.name
		}
	}
	return segmentBins[len(segmentBins)-1].name
}

// quantileOf computes the q-th quantile with linear interpolation over
// a copy of the input.
func quantileOf(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
