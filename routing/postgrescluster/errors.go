package postgrescluster

import "errors"

var ErrNilRouter = errors.New("nil router supplied")
var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrAdapterAlreadyAttached = errors.New("a connection is already attached for this handle")
var ErrAdapterNotAttached = errors.New("no connection attached for the decided handle")
var ErrOpeningPoolFailed = errors.New("failed to open connection pool")

var ErrQueryFailed = errors.New("database query execution failed")
var ErrExecFailed = errors.New("database statement execution failed")
var ErrGettingRowsAffectedFailed = errors.New("failed to get rows affected count")
var ErrBuildingQueryFailed = errors.New("failed to build sql query")

var ErrEmptyVersionTableName = errors.New("empty version table name supplied")
var ErrInvalidMigration = errors.New("invalid migration supplied")
var ErrMigrationFailed = errors.New("migration failed")
