// GridWatch - Weather and Power Telemetry Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gridwatch

package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gridwatch/internal/models"
)

// Row limits for history queries.
const (
	DefaultHistoryLimit = 1000
	MaxHistoryLimit     = 10000
)

type dialect int

const (
	dialectDuckDB dialect = iota
	dialectPostgres
)

func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// bucketUnit maps an aggregation level to a date_trunc unit. Raw returns "".
func bucketUnit(agg string) (string, error) {
	switch agg {
	case "", models.AggRaw:
		return "", nil
	case models.AggMinute, models.AggHour, models.AggDay:
		return agg, nil
	default:
		return "", fmt.Errorf("%w: aggregation %q must be one of raw, minute, hour, day", ErrInvalidQuery, agg)
	}
}

// normalizeQuery validates q and fills defaults.
func normalizeQuery(q models.HistoryQuery) (models.HistoryQuery, error) {
	if q.End.IsZero() {
		q.End = time.Now().UTC()
	}
	if q.Start.IsZero() {
		q.Start = q.End.Add(-24 * time.Hour)
	}
	if !q.Start.Before(q.End) {
		return q, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidQuery,
			q.Start.Format(time.RFC3339), q.End.Format(time.RFC3339))
	}
	if _, err := bucketUnit(q.Agg); err != nil {
		return q, err
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultHistoryLimit
	case q.Limit > MaxHistoryLimit:
		q.Limit = MaxHistoryLimit
	}
	q.Start = q.Start.UTC()
	q.End = q.End.UTC()
	return q, nil
}

// timeFilter builds the shared WHERE clause over [start, end) and an
// optional series column match.
func timeFilter(d dialect, q models.HistoryQuery, seriesColumn string) (string, []interface{}) {
	args := []interface{}{q.Start, q.End}
	where := fmt.Sprintf(`"timestamp" >= %s AND "timestamp" < %s`, d.placeholder(1), d.placeholder(2))
	if q.Series != "" {
		args = append(args, q.Series)
		where += fmt.Sprintf(" AND %s = %s", seriesColumn, d.placeholder(3))
	}
	return where, args
}

// weatherHistorySQL returns the statement and arguments for a weather
// history query. q must already be normalized.
//
// Raw rows select the six metric columns plus the metrics JSON; bucketed
// rows select AVG of each column.
func weatherHistorySQL(d dialect, q models.HistoryQuery) (string, []interface{}) {
	where, args := timeFilter(d, q, "station")
	unit, _ := bucketUnit(q.Agg) //nolint:errcheck // validated by normalizeQuery

	var sb strings.Builder
	if unit == "" {
		sb.WriteString(`SELECT station, "timestamp", `)
		sb.WriteString(strings.Join(weatherColumns, ", "))
		sb.WriteString(", metrics FROM weather_readings WHERE ")
		sb.WriteString(where)
		fmt.Fprintf(&sb, ` ORDER BY "timestamp", station LIMIT %d`, q.Limit)
		return sb.String(), args
	}

	fmt.Fprintf(&sb, `SELECT station, date_trunc('%s', "timestamp") AS bucket`, unit)
	for _, col := range weatherColumns {
		fmt.Fprintf(&sb, ", AVG(%s)", col)
	}
	sb.WriteString(", CAST(NULL AS VARCHAR) FROM weather_readings WHERE ")
	sb.WriteString(where)
	fmt.Fprintf(&sb, " GROUP BY station, bucket ORDER BY bucket, station LIMIT %d", q.Limit)
	return sb.String(), args
}

// powerHistorySQL is the power counterpart of weatherHistorySQL.
func powerHistorySQL(d dialect, q models.HistoryQuery) (string, []interface{}) {
	where, args := timeFilter(d, q, "source_id")
	unit, _ := bucketUnit(q.Agg) //nolint:errcheck // validated by normalizeQuery

	if unit == "" {
		return fmt.Sprintf(`SELECT source_id, "timestamp", voltage, "current", power FROM power_readings WHERE %s ORDER BY "timestamp", source_id LIMIT %d`,
			where, q.Limit), args
	}
	return fmt.Sprintf(`SELECT source_id, date_trunc('%s', "timestamp") AS bucket, AVG(voltage), AVG("current"), AVG(power) FROM power_readings WHERE %s GROUP BY source_id, bucket ORDER BY bucket, source_id LIMIT %d`,
		unit, where, q.Limit), args
}

func insertWeatherSQL(d dialect) string {
	placeholders := make([]string, 0, len(weatherColumns)+3)
	for i := 1; i <= len(weatherColumns)+3; i++ {
		placeholders = append(placeholders, d.placeholder(i))
	}
	return fmt.Sprintf(`INSERT INTO weather_readings (station, "timestamp", %s, metrics) VALUES (%s)`,
		strings.Join(weatherColumns, ", "), strings.Join(placeholders, ", "))
}

func insertPowerSQL(d dialect) string {
	return fmt.Sprintf(`INSERT INTO power_readings (source_id, "timestamp", voltage, "current", power) VALUES (%s, %s, %s, %s, %s)`,
		d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4), d.placeholder(5))
}

// weatherInsertArgs returns the bind values for insertWeatherSQL.
func weatherInsertArgs(rec *models.WeatherRecord, ts time.Time) ([]interface{}, error) {
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	args := make([]interface{}, 0, len(weatherColumns)+3)
	args = append(args, rec.Station, ts.UTC())
	for _, col := range weatherColumns {
		args = append(args, rec.Metrics[col])
	}
	return append(args, string(metricsJSON)), nil
}

func powerInsertArgs(s *models.PowerSample, ts time.Time) []interface{} {
	return []interface{}{s.SourceID, ts.UTC(), s.Voltage, s.Current, s.Power}
}

// rowScanner is satisfied by *sql.Rows and pgx.Rows.
type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanWeather(rows rowScanner) ([]models.WeatherPoint, error) {
	points := make([]models.WeatherPoint, 0)
	for rows.Next() {
		var (
			p       models.WeatherPoint
			values  = make([]*float64, len(weatherColumns))
			metrics *string
		)
		dest := make([]interface{}, 0, len(weatherColumns)+3)
		dest = append(dest, &p.Station, &p.Timestamp)
		for i := range values {
			dest = append(dest, &values[i])
		}
		dest = append(dest, &metrics)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan weather row: %w", err)
		}

		p.Metrics = make(map[string]*float64, len(weatherColumns))
		if metrics != nil && *metrics != "" {
			// The JSON column also carries metrics without their own column.
			_ = json.Unmarshal([]byte(*metrics), &p.Metrics) //nolint:errcheck // columns below still apply
		}
		for i, col := range weatherColumns {
			p.Metrics[col] = values[i]
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func scanPower(rows rowScanner) ([]models.PowerPoint, error) {
	points := make([]models.PowerPoint, 0)
	for rows.Next() {
		var p models.PowerPoint
		if err := rows.Scan(&p.SourceID, &p.Timestamp, &p.Voltage, &p.Current, &p.Power); err != nil {
			return nil, fmt.Errorf("scan power row: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}
