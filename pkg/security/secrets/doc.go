// Package secrets resolves ${secret:name} references in configuration
// values, so credentials such as a database password stay out of the config
// file.
//
// A Resolver asks its providers in order and the first one holding the
// secret wins:
//
//	r := secrets.NewResolver(logger,
//	    secrets.NewEnvProvider("RULER_SECRET_"),
//	    fileProvider,
//	)
//	dsn, err := r.Resolve(ctx, "postgres://ruler:${secret:db-password}@db/ruler")
//
// EnvProvider reads "db-password" from RULER_SECRET_DB_PASSWORD.
// FileProvider reads it from <dir>/db-password and refuses files readable by
// group or others.
package secrets
