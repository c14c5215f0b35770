package semview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/semview/catalog"
	"github.com/hupe1980/semview/durable"
	"github.com/hupe1980/semview/durable/sqlstore"
	"github.com/hupe1980/semview/internal/sidecar"
	"github.com/hupe1980/semview/internal/writer"
)

// Durability selects how definitions survive restarts.
type Durability uint8

const (
	// DurabilityAuto uses DurabilityWriter for file-backed databases and
	// custom catalog stores, and DurabilityNone for in-memory databases.
	DurabilityAuto Durability = iota
	// DurabilityWriter writes every change to the catalog relation through a
	// background writer that owns its own connection.
	DurabilityWriter
	// DurabilitySidecar writes every change to a JSON file next to the
	// database file. The relation is resynchronized from the file at Open.
	DurabilitySidecar
	// DurabilityNone keeps definitions in memory only.
	DurabilityNone
)

func (d Durability) String() string {
	switch d {
	case DurabilityAuto:
		return "auto"
	case DurabilityWriter:
		return "writer"
	case DurabilitySidecar:
		return "sidecar"
	case DurabilityNone:
		return "none"
	default:
		return fmt.Sprintf("Durability(%d)", uint8(d))
	}
}

// ParseDurability parses the String form of a Durability.
func ParseDurability(s string) (Durability, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return DurabilityAuto, nil
	case "writer":
		return DurabilityWriter, nil
	case "sidecar":
		return DurabilitySidecar, nil
	case "none", "memory":
		return DurabilityNone, nil
	default:
		return 0, fmt.Errorf("unknown durability mode %q", s)
	}
}

var errSidecarNeedsFile = errors.New("semview: sidecar durability requires a file-backed database")

func (d Durability) resolve(storePath string, customStore bool) Durability {
	if d != DurabilityAuto {
		return d
	}
	if customStore || sidecar.Path(storePath) != "" {
		return DurabilityWriter
	}
	return DurabilityNone
}

// setup holds what Open builds for one durability mode.
type setup struct {
	catalog *catalog.Catalog
	writer  *writer.Writer
}

func openCatalog(ctx context.Context, db *DB, o options) (*setup, error) {
	conn, closeConn, err := initConn(ctx, db, o)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	catOpts := []catalog.Option{catalog.WithLogger(o.logger.Logger)}

	switch db.mode {
	case DurabilityNone:
		cat, err := catalog.Init(ctx, conn, catOpts...)
		if err != nil {
			return nil, err
		}
		return &setup{catalog: cat}, nil

	case DurabilitySidecar:
		path := sidecar.Path(db.storePath)
		if path == "" {
			return nil, errSidecarNeedsFile
		}
		file := sidecar.NewFile(path, sidecar.WithFileSystem(o.fs), sidecar.WithCodec(o.codec))
		sp := sidecar.NewPersister(file, nil, o.logger.Logger)
		cat, err := catalog.Init(ctx, conn, append(catOpts, catalog.WithSidecar(file), catalog.WithPersister(sp))...)
		if err != nil {
			return nil, err
		}
		sp.Reset(cat.Snapshot())
		return &setup{catalog: cat}, nil

	case DurabilityWriter:
		open := o.catalogStore
		if open == nil {
			if db.host == nil {
				return nil, ErrNoHost
			}
			open = sqlstore.Opener(db.host, db.dialect)
		}
		// The worker outlives Open's context; Close stops it.
		w, err := writer.Start(context.WithoutCancel(ctx), open,
			writer.WithQueueSize(o.writerQueueSize),
			writer.WithLogger(o.logger.Logger),
		)
		if err != nil {
			return nil, fmt.Errorf("semview: start writer: %w", err)
		}
		cat, err := catalog.Init(ctx, conn, append(catOpts, catalog.WithPersister(w))...)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		return &setup{catalog: cat, writer: w}, nil

	default:
		return nil, fmt.Errorf("semview: unsupported durability mode %s", db.mode)
	}
}

// initConn returns the connection the catalog is loaded from.
func initConn(ctx context.Context, db *DB, o options) (durable.Conn, func(), error) {
	if o.catalogStore != nil {
		conn, err := o.catalogStore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("semview: open catalog store: %w", err)
		}
		return conn, func() { _ = conn.Close() }, nil
	}
	if db.host == nil {
		return durable.NewMemory(), func() {}, nil
	}
	return sqlstore.New(db.host, db.dialect), func() {}, nil
}
