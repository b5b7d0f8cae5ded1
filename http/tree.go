package http

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/sapling-labs/arbor/featureflag"
	"github.com/sapling-labs/arbor/growth"
	"github.com/sapling-labs/arbor/models"
	"github.com/sapling-labs/arbor/skeleton"
	"github.com/sapling-labs/arbor/treegen"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeBadRequest = "bad-request"

	// DefaultMaxIterations caps the iteration count a client can request.
	DefaultMaxIterations = 12
)

// TreeHandler serves generated trees. Every request grows its own tree from
// the seed in the path.
type TreeHandler struct {
	SeedStructure growth.SeedStructure
	Options       treegen.Options
	MaxIterations int

	// Generate defaults to treegen.Generate.
	Generate func(context.Context, models.TreeIdentity, growth.SeedStructure, treegen.Options) (*treegen.Result, error)

	ready atomic.Bool
}

// WarmUp grows one tree with the handler settings. The handler is ready once
// a warm-up succeeded.
func (h *TreeHandler) WarmUp(ctx context.Context, seed uint64) error {
	tree := models.NewTreeIdentity("warm-up", seed)

	res, err := h.generateFunc()(ctx, tree, h.SeedStructure, h.Options)
	if err != nil {
		return errors.New("tree handler warm-up failed").
			WithTag("seed", seed).
			Wrap(err)
	}

	h.ready.Store(true)
	logs.WithTag("seed", seed).
		WithTag("metamers", res.Stats.LiveMetamers).
		WithTag("triangles", res.Stats.Triangles).
		WithTag("duration", res.Stats.Duration).
		Info("tree handler ready")
	return nil
}

func (h *TreeHandler) Ready() bool {
	return h.ready.Load()
}

// Register adds the tree routes to the mux.
func (h *TreeHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /trees/{seed}/mesh.obj", h.HandleMesh)
	mux.HandleFunc("GET /trees/{seed}/skeleton.json", h.HandleSkeleton)
}

func (h *TreeHandler) HandleMesh(w http.ResponseWriter, r *http.Request) {
	res, ok := h.generate(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "model/obj")
	w.Header().Set("X-Tree-ID", res.Identity.ID.String())
	w.WriteHeader(http.StatusOK)
	if err := res.Mesh.WriteOBJ(w); err != nil {
		logs.WithTag("tree_id", res.Identity.ID).
			Warn(errors.New("writing mesh failed").Wrap(err))
	}
}

type skeletonResponse struct {
	Tree     models.TreeIdentity     `json:"tree"`
	Stats    treegen.Stats           `json:"stats"`
	Skeleton *skeleton.TreeStructure `json:"skeleton"`
}

func (h *TreeHandler) HandleSkeleton(w http.ResponseWriter, r *http.Request) {
	res, ok := h.generate(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(skeletonResponse{
		Tree:     res.Identity,
		Stats:    res.Stats,
		Skeleton: res.Skeleton,
	}); err != nil {
		logs.WithTag("tree_id", res.Identity.ID).
			Warn(errors.New("writing skeleton failed").Wrap(err))
	}
}

func (h *TreeHandler) generate(w http.ResponseWriter, r *http.Request) (*treegen.Result, bool) {
	tree, conf, opts, err := h.parseRequest(r)
	if err != nil {
		logs.WithTag("path", r.URL.Path).Debug(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	res, err := h.generateFunc()(r.Context(), tree, conf, opts)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.IsType(err, growth.ErrTypeInvalidConfig):
			status = http.StatusBadRequest
		case errors.IsType(err, treegen.ErrTypeDeadTree):
			status = http.StatusGone
		}
		http.Error(w, http.StatusText(status), status)
		return nil, false
	}
	return res, true
}

// parseRequest reads the seed from the path and the optional name, kind,
// damage, iterations, subdivisions and segments query parameters.
func (h *TreeHandler) parseRequest(r *http.Request) (models.TreeIdentity, growth.SeedStructure, treegen.Options, error) {
	var tree models.TreeIdentity
	conf := h.SeedStructure
	opts := h.Options

	seed, err := strconv.ParseUint(r.PathValue("seed"), 10, 64)
	if err != nil {
		return tree, conf, opts, badRequest("seed", r.PathValue("seed"), err)
	}

	query := r.URL.Query()
	tree = models.NewTreeIdentity(query.Get("name"), seed)

	if v := query.Get("kind"); v != "" {
		kind, err := models.ParseTreeKind(v)
		if err != nil {
			return tree, conf, opts, badRequest("kind", v, err)
		}
		tree.Kind = kind
	}

	if v := query.Get("damage"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return tree, conf, opts, badRequest("damage", v, err)
		}
		tree.Damage(uint8(n))
	}

	if v := query.Get("iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > h.maxIterations() {
			return tree, conf, opts, badRequest("iterations", v, err)
		}
		conf.IterationsCount = n
	}

	if v := query.Get("subdivisions"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 8 {
			return tree, conf, opts, badRequest("subdivisions", v, err)
		}

		flags := featureflag.New(opts.Flags.Strings())
		if n > 0 {
			flags[featureflag.FlagSmoothSkeleton] = struct{}{}
		} else {
			delete(flags, featureflag.FlagSmoothSkeleton)
		}
		opts.Flags = flags
		opts.Subdivisions = n
	}

	if v := query.Get("segments"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 3 || n > 64 {
			return tree, conf, opts, badRequest("segments", v, err)
		}
		opts.RingSegments = n
	}

	return tree, conf, opts, nil
}

func (h *TreeHandler) generateFunc() func(context.Context, models.TreeIdentity, growth.SeedStructure, treegen.Options) (*treegen.Result, error) {
	if h.Generate == nil {
		return treegen.Generate
	}
	return h.Generate
}

func (h *TreeHandler) maxIterations() int {
	if h.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return h.MaxIterations
}

func badRequest(param string, value string, err error) error {
	e := errors.New("invalid request parameter").
		WithType(ErrTypeBadRequest).
		WithTag("param", param).
		WithTag("value", value)
	if err != nil {
		return e.Wrap(err)
	}
	return e
}
