package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnosis is the log-friendly view of a failed operation: the typed code,
// the wrap chain and whatever the database driver reported.
type Diagnosis struct {
	Message string
	Code    Code
	Chain   []string

	Driver     string
	SQLState   string
	Constraint string
	Table      string
	Detail     string

	// Transient marks lock contention and serialization failures; the same
	// commit may succeed when retried.
	Transient bool
}

var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled
}

// Diagnose walks err and collects what the logs need to explain it.
func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{}
	}

	d := Diagnosis{Message: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.Driver = "postgres"
		d.SQLState = pgxErr.Code
		d.Constraint = pgxErr.ConstraintName
		d.Table = pgxErr.TableName
		d.Detail = pgxErr.Detail
	case errors.As(err, &pqErr):
		d.Driver = "postgres"
		d.SQLState = string(pqErr.Code)
		d.Constraint = pqErr.Constraint
		d.Table = pqErr.Table
		d.Detail = pqErr.Detail
	default:
		// the sqlite driver only reports through the message text
		msg := strings.ToLower(d.Message)
		if strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") {
			d.Driver = "sqlite"
			d.Transient = true
		} else if strings.Contains(msg, "constraint failed") {
			d.Driver = "sqlite"
		}
		return d
	}

	d.Transient = transientSQLStates[d.SQLState]
	return d
}

// Fields flattens the diagnosis for structured logging, skipping empty values.
func (d Diagnosis) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if d.Driver != "" {
		fields["db_driver"] = d.Driver
		fields["db_transient"] = d.Transient
	}
	if d.SQLState != "" {
		fields["sql_state"] = d.SQLState
	}
	if d.Constraint != "" {
		fields["db_constraint"] = d.Constraint
	}
	if d.Table != "" {
		fields["db_table"] = d.Table
	}
	if d.Detail != "" {
		fields["db_detail"] = d.Detail
	}
	return fields
}
