// Package oui resolves MAC addresses to the registered vendor name.
package oui

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/oui"
	"github.com/sirupsen/logrus"
)

// Resolver looks up the vendor behind a MAC address. Lookups are
// best-effort; an unknown prefix is not an error.
type Resolver interface {
	Vendor(mac string) (string, bool)
}

type resolver struct {
	log logrus.FieldLogger
	db  oui.StaticDB
}

type nopResolver struct{}

func (nopResolver) Vendor(string) (string, bool) { return "", false }

// Nop returns a Resolver that never finds a vendor.
func Nop() Resolver {
	return nopResolver{}
}

// Open loads an IEEE oui.txt database from path. An empty path yields a
// Resolver that never finds a vendor.
func Open(log logrus.FieldLogger, path string) (Resolver, error) {
	if path == "" {
		return Nop(), nil
	}

	db, err := oui.OpenStaticFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening oui database %s: %w", path, err)
	}

	return newResolver(log, db), nil
}

// Load reads an IEEE oui.txt database from r.
func Load(log logrus.FieldLogger, r io.Reader) (Resolver, error) {
	db, err := oui.OpenStatic(r)
	if err != nil {
		return nil, fmt.Errorf("reading oui database: %w", err)
	}

	return newResolver(log, db), nil
}

func newResolver(log logrus.FieldLogger, db oui.StaticDB) Resolver {
	l := log.WithField("component", "oui")
	l.WithField("generated", db.Generated()).Info("Loaded OUI database")

	return &resolver{log: l, db: db}
}

func (r *resolver) Vendor(mac string) (string, bool) {
	entry, err := r.db.Query(strings.ToUpper(mac))
	if err != nil {
		if err != oui.ErrNotFound {
			r.log.WithError(err).WithField("mac", mac).Debug("OUI lookup failed")
		}

		return "", false
	}

	return entry.Manufacturer, true
}
