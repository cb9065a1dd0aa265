// Package process implements the Processor interface spec §6 describes as
// an external collaborator, plus the one built-in implementation this
// repository ships, Passthrough, for already-STAC ingest sources.
package process

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/ioscope"
	"github.com/fntb/stac-repository/iostac"
	"github.com/fntb/stac-repository/stac"
)

// Processor turns one ingest source into zero or more product sources,
// and each product source into a cataloged id, a declared version, and a
// href of a STAC object file ready for Transaction.Catalog (spec §6
// "Processor interface").
type Processor interface {
	// Discover enumerates the product sources found at source.
	Discover(ctx context.Context, source string) ([]string, error)
	// ID returns the id a cataloged product from productSource would have.
	ID(ctx context.Context, productSource string) (string, error)
	// Version returns the version a cataloged product from productSource
	// would declare.
	Version(ctx context.Context, productSource string) (string, error)
	// Process returns the href of the STAC object file productSource
	// resolves to, ready to be passed to Transaction.Catalog.
	Process(ctx context.Context, productSource string) (string, error)
}

// Passthrough is the built-in Processor spec §6 requires to exist: it
// treats an already-STAC productSource as its own output, and invents a
// random version when the document declares none.
type Passthrough struct {
	reader iostac.Readable
}

var _ Processor = (*Passthrough)(nil)

// NewPassthrough returns a Passthrough reading productSource hrefs off the
// local filesystem or http(s), per client (nil uses http.DefaultClient).
func NewPassthrough(client *http.Client) *Passthrough {
	return &Passthrough{reader: ioscope.Unrestricted(client)}
}

// Discover treats source itself as the one product it finds: passthrough
// ingestion is always a single already-STAC document per source.
func (p *Passthrough) Discover(ctx context.Context, source string) ([]string, error) {
	return []string{source}, nil
}

func (p *Passthrough) ID(ctx context.Context, productSource string) (string, error) {
	const op = stacerrors.Op("process.Passthrough.ID")

	obj, err := stac.Load(ctx, productSource, p.reader, stac.LoadOptions{})
	if err != nil {
		return "", stacerrors.E(op, err)
	}
	return obj.ID(), nil
}

// Version returns the document's declared version, or a freshly generated
// random one if it declares none (spec §6).
func (p *Passthrough) Version(ctx context.Context, productSource string) (string, error) {
	const op = stacerrors.Op("process.Passthrough.Version")

	obj, err := stac.Load(ctx, productSource, p.reader, stac.LoadOptions{})
	if err != nil {
		return "", stacerrors.E(op, err)
	}
	if v, err := stac.GetVersion(obj); err == nil {
		return v, nil
	}
	v := uuid.NewString()
	klog.Infof("process.Passthrough: %s declares no version, generated %s", productSource, v)
	return v, nil
}

// Process returns productSource unchanged: it is already the STAC object
// file Transaction.Catalog needs.
func (p *Passthrough) Process(ctx context.Context, productSource string) (string, error) {
	return productSource, nil
}
