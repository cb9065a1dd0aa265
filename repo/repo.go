// Package repo implements the outermost entry point spec §4.5 calls the
// Repository: lifecycle (init/open), commit history, ref resolution, and
// the batch ingest/prune operations that each drive one transaction.Transaction
// to completion.
package repo

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/fntb/stac-repository/backend"
	"github.com/fntb/stac-repository/commitview"
	stacerrors "github.com/fntb/stac-repository/internal/errors"
	"github.com/fntb/stac-repository/internal/href"
	"github.com/fntb/stac-repository/process"
	"github.com/fntb/stac-repository/stac"
	"github.com/fntb/stac-repository/transaction"
)

// Repository is the top-level handle a client opens or initialises. Its
// zero value is not usable; construct one via Init or Open.
type Repository struct {
	backend    backend.Backend
	processors map[string]process.Processor
}

// Option configures a Repository at construction time.
type Option func(*Repository)

// WithProcessor registers a Processor under id, for Ingest to drive.
// "passthrough" is pre-registered and may be overridden.
func WithProcessor(id string, p process.Processor) Option {
	return func(r *Repository) {
		r.processors[id] = p
	}
}

func newRepository(b backend.Backend, opts []Option) *Repository {
	r := &Repository{
		backend:    b,
		processors: map[string]process.Processor{"passthrough": process.NewPassthrough(nil)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init creates a fresh repository on b and writes rootCatalogDoc as its
// root catalog.json in a first commit (spec §4.5 "init"). Fails
// repository-already-initialised if b is non-empty.
func Init(ctx context.Context, b backend.Backend, rootCatalogDoc stac.Object, opts ...Option) (*Repository, error) {
	const op = stacerrors.Op("repo.Init")

	if err := b.Init(ctx); err != nil {
		return nil, stacerrors.E(op, err)
	}

	staging, _, _, err := b.BeginTransaction(ctx)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}

	rootHref := href.Join(staging.Base()+"/", "catalog.json")
	rootCatalogDoc.SetSelfHref(rootHref)

	doc, err := stac.RawDoc(rootCatalogDoc)
	if err != nil {
		_ = staging.Abort(ctx)
		return nil, stacerrors.E(op, stacerrors.JSONObjectError, stacerrors.Href(rootHref), err)
	}
	if err := staging.Put(ctx, rootHref, doc); err != nil {
		_ = staging.Abort(ctx)
		return nil, stacerrors.E(op, err)
	}
	if _, err := staging.Commit(ctx, "init"); err != nil {
		return nil, stacerrors.E(op, err)
	}

	return newRepository(b, opts), nil
}

// Open binds to an existing repository, running the backend's crash
// recovery (spec §4.5 "open").
func Open(ctx context.Context, b backend.Backend, opts ...Option) (*Repository, error) {
	const op = stacerrors.Op("repo.Open")

	if err := b.Open(ctx); err != nil {
		return nil, stacerrors.E(op, err)
	}
	return newRepository(b, opts), nil
}

// Head returns a Commit view of the current head, or ok=false on a
// repository with no commits yet.
func (r *Repository) Head(ctx context.Context) (*commitview.Commit, bool, error) {
	const op = stacerrors.Op("repo.Head")

	info, ok, err := r.backend.Head(ctx)
	if err != nil {
		return nil, false, stacerrors.E(op, err)
	}
	if !ok {
		return nil, false, nil
	}
	c, err := commitview.Open(ctx, r.backend, info)
	if err != nil {
		return nil, false, stacerrors.E(op, err)
	}
	return c, true, nil
}

// Commits returns Commit views of the repository's full history, most
// recent first (spec §4.5 "commit history iteration").
func (r *Repository) Commits(ctx context.Context) ([]*commitview.Commit, error) {
	const op = stacerrors.Op("repo.Commits")

	history, err := r.backend.Commits(ctx)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	out := make([]*commitview.Commit, 0, len(history))
	for _, info := range history {
		c, err := commitview.Open(ctx, r.backend, info)
		if err != nil {
			return nil, stacerrors.E(op, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// GetCommit resolves ref against commit history (spec §4.5 "get_commit"):
// a unique prefix of a commit id; a non-positive integer -k for "the k-th
// commit before head" (0 = head); or a timestamp for "the most recent
// commit whose datetime <= ref". Fails commit-not-found if ref matches no
// commit (or, for a prefix, matches more than one), ref-type-error if ref
// parses as a positive integer (not a valid "commits before head" count).
func (r *Repository) GetCommit(ctx context.Context, ref string) (*commitview.Commit, error) {
	const op = stacerrors.Op("repo.GetCommit")

	history, err := r.backend.Commits(ctx)
	if err != nil {
		return nil, stacerrors.E(op, err)
	}
	if len(history) == 0 {
		return nil, stacerrors.E(op, stacerrors.CommitNotFound, stacerrors.Href(ref))
	}

	if n, intErr := strconv.Atoi(ref); intErr == nil {
		if n > 0 {
			return nil, stacerrors.E(op, stacerrors.RefTypeError, stacerrors.Href(ref))
		}
		k := -n
		if k >= len(history) {
			return nil, stacerrors.E(op, stacerrors.CommitNotFound, stacerrors.Href(ref))
		}
		return commitview.Open(ctx, r.backend, history[k])
	}

	if t, timeErr := time.Parse(time.RFC3339, ref); timeErr == nil {
		for _, info := range history {
			if !info.Datetime.After(t) {
				return commitview.Open(ctx, r.backend, info)
			}
		}
		return nil, stacerrors.E(op, stacerrors.CommitNotFound, stacerrors.Href(ref))
	}

	var matches []backend.CommitInfo
	for _, info := range history {
		if strings.HasPrefix(info.ID, ref) {
			matches = append(matches, info)
		}
	}
	switch len(matches) {
	case 0:
		return nil, stacerrors.E(op, stacerrors.CommitNotFound, stacerrors.Href(ref))
	case 1:
		return commitview.Open(ctx, r.backend, matches[0])
	default:
		return nil, stacerrors.E(op, stacerrors.CommitNotFound, stacerrors.Sub("ambiguous"), stacerrors.Href(ref))
	}
}

// IngestOptions bundles the per-call knobs Ingest forwards to each
// Transaction.Catalog, plus the parent id new products are grafted under.
type IngestOptions struct {
	ParentID string
	transaction.CatalogOptions
}

// Ingest drives one Transaction that runs every source through the named
// Processor's discover/id/version/process pipeline and catalogs the
// result, skipping products already cataloged at an identical version and
// replacing (uncatalog then catalog) those at a different one (spec §4.5
// "ingest"). Per-product failures are collected into an error-group and
// surfaced after commit; commit is attempted regardless of them, and a
// commit failure itself is surfaced in place of the group, with the
// transaction aborted.
func (r *Repository) Ingest(ctx context.Context, sources []string, processorID string, opts IngestOptions) (backend.CommitInfo, error) {
	const op = stacerrors.Op("repo.Ingest")

	proc, ok := r.processors[processorID]
	if !ok {
		return backend.CommitInfo{}, stacerrors.E(op, stacerrors.ProcessorNotFound, stacerrors.Href(processorID))
	}

	tx, err := transaction.Begin(ctx, r.backend)
	if err != nil {
		return backend.CommitInfo{}, stacerrors.E(op, err)
	}

	group := stacerrors.NewErrorGroup()
	for _, source := range sources {
		productSources, err := proc.Discover(ctx, source)
		if err != nil {
			group.Add(source, stacerrors.E(stacerrors.ProcessingError, err))
			continue
		}
		for _, productSource := range productSources {
			if err := r.ingestOne(ctx, tx, proc, productSource, opts); err != nil {
				group.Add(productSource, err)
			}
		}
	}

	info, commitErr := tx.Commit(ctx, ingestMessage(sources))
	if commitErr != nil {
		_ = tx.Abort(ctx)
		return backend.CommitInfo{}, stacerrors.E(op, commitErr)
	}
	if err := group.ErrOrNil(); err != nil {
		return info, stacerrors.E(op, err)
	}
	return info, nil
}

func (r *Repository) ingestOne(ctx context.Context, tx *transaction.Transaction, proc process.Processor, productSource string, opts IngestOptions) error {
	const op = stacerrors.Op("repo.ingestOne")

	id, err := proc.ID(ctx, productSource)
	if err != nil {
		return stacerrors.E(op, stacerrors.ProcessingError, stacerrors.Href(productSource), err)
	}
	version, err := proc.Version(ctx, productSource)
	if err != nil {
		return stacerrors.E(op, stacerrors.ProcessingError, stacerrors.Href(productSource), err)
	}

	if existing, err := tx.Search(ctx, id); err != nil {
		return stacerrors.E(op, err)
	} else if existing != nil {
		if existingVersion, err := stac.GetVersion(existing); err == nil && sameVersion(existingVersion, version) {
			return nil
		}
	}

	productHref, err := proc.Process(ctx, productSource)
	if err != nil {
		return stacerrors.E(op, stacerrors.ProcessingError, stacerrors.Href(productSource), err)
	}
	if err := tx.Catalog(ctx, productHref, opts.ParentID, opts.CatalogOptions); err != nil {
		return stacerrors.E(op, err)
	}
	return nil
}

// sameVersion compares two declared versions as semver when both parse as
// such, falling back to byte-equality otherwise — a source that doesn't
// declare semver versions (a plain build number, a hash) still compares
// sensibly.
func sameVersion(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Equal(vb)
	}
	return a == b
}

func ingestMessage(sources []string) string {
	return "ingest: " + strings.Join(sources, ", ")
}

// Prune drives one Transaction that calls Uncatalog on every id in
// productIDs, collecting per-id failures the same way Ingest does (spec
// §4.5 "prune").
func (r *Repository) Prune(ctx context.Context, productIDs []string) (backend.CommitInfo, error) {
	const op = stacerrors.Op("repo.Prune")

	tx, err := transaction.Begin(ctx, r.backend)
	if err != nil {
		return backend.CommitInfo{}, stacerrors.E(op, err)
	}

	group := stacerrors.NewErrorGroup()
	for _, id := range productIDs {
		if err := tx.Uncatalog(ctx, id); err != nil {
			group.Add(id, err)
		}
	}

	info, commitErr := tx.Commit(ctx, pruneMessage(productIDs))
	if commitErr != nil {
		_ = tx.Abort(ctx)
		return backend.CommitInfo{}, stacerrors.E(op, commitErr)
	}
	if err := group.ErrOrNil(); err != nil {
		return info, stacerrors.E(op, err)
	}
	return info, nil
}

func pruneMessage(productIDs []string) string {
	return "prune: " + strings.Join(productIDs, ", ")
}
