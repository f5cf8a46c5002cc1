// authcore-admin is an operator tool for authcore deployments.
//
// Subcommands:
//
//	gen-secret      print a fresh random signing secret (hex)
//	rotate-secret   replace the committed signing secret in the database
//	purge-errors    delete error records past the retention window
//	init-schema     create the settings and error_log tables
//
// Database commands open PostgreSQL through the pgx stdlib driver and
// expect the DSN in --dsn or the AUTHCORE_DSN environment variable.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ledgerkeep/authcore/apierror"
	"github.com/ledgerkeep/authcore/secret"
)

const schemaDDL = `
create table if not exists settings (
    key        text primary key,
    value      text not null,
    updated_at timestamptz not null default now()
);

create table if not exists error_log (
    id               bigserial primary key,
    correlation_id   text not null,
    created_at       timestamptz not null,
    classification   text not null,
    redacted_message text not null,
    raw_detail       text not null,
    context          jsonb
);

create index if not exists error_log_created_at_idx on error_log (created_at);
`

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "gen-secret":
		err = runGenSecret(os.Args[2:])
	case "rotate-secret":
		err = runRotateSecret(os.Args[2:])
	case "purge-errors":
		err = runPurgeErrors(os.Args[2:])
	case "init-schema":
		err = runInitSchema(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: authcore-admin <gen-secret|rotate-secret|purge-errors|init-schema> [flags]")
}

func runGenSecret(args []string) error {
	flags := pflag.NewFlagSet("gen-secret", pflag.ExitOnError)
	size := flags.Int("bytes", 32, "secret length in bytes")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *size < 16 {
		return fmt.Errorf("refusing to generate a secret shorter than 16 bytes")
	}

	buf := make([]byte, *size)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(buf))
	return nil
}

func runRotateSecret(args []string) error {
	flags := pflag.NewFlagSet("rotate-secret", pflag.ExitOnError)
	dsn := flags.String("dsn", "", "postgres DSN (default: AUTHCORE_DSN env)")
	hexSecret := flags.String("secret", "", "hex-encoded replacement secret; generated when empty")
	timeout := flags.Duration("timeout", 10*time.Second, "database operation timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var newSecret []byte
	if *hexSecret != "" {
		decoded, err := hex.DecodeString(*hexSecret)
		if err != nil {
			return fmt.Errorf("decode --secret: %v", err)
		}
		if len(decoded) < 16 {
			return fmt.Errorf("replacement secret must be at least 16 bytes")
		}
		newSecret = decoded
	}

	db, err := openDB(*dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "authcore-admin").Logger()
	provider, err := secret.NewProvider(secret.NewSQLStore(db), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rotated, err := provider.Rotate(ctx, newSecret)
	if err != nil {
		return err
	}

	fmt.Printf("rotated; new secret is %d bytes\n", len(rotated))
	fmt.Println("restart or signal running instances so they pick up the new secret")
	return nil
}

func runPurgeErrors(args []string) error {
	flags := pflag.NewFlagSet("purge-errors", pflag.ExitOnError)
	dsn := flags.String("dsn", "", "postgres DSN (default: AUTHCORE_DSN env)")
	retention := flags.Duration("retention", 30*24*time.Hour, "keep records newer than this")
	timeout := flags.Duration("timeout", time.Minute, "database operation timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *retention <= 0 {
		return fmt.Errorf("--retention must be > 0")
	}

	db, err := openDB(*dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	removed, err := apierror.NewSQLRecordStore(db).PurgeOlderThan(ctx, *retention)
	if err != nil {
		return err
	}

	fmt.Printf("purged %d error records older than %s\n", removed, *retention)
	return nil
}

func runInitSchema(args []string) error {
	flags := pflag.NewFlagSet("init-schema", pflag.ExitOnError)
	dsn := flags.String("dsn", "", "postgres DSN (default: AUTHCORE_DSN env)")
	timeout := flags.Duration("timeout", 30*time.Second, "database operation timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	db, err := openDB(*dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %v", err)
	}

	fmt.Println("schema ready")
	return nil
}

func openDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("AUTHCORE_DSN")
	}
	if dsn == "" {
		return nil, fmt.Errorf("--dsn or AUTHCORE_DSN is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %v", err)
	}
	return db, nil
}
