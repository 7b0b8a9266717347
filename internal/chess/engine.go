package chess

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/park285/cheese-engine/internal/board"
	"github.com/park285/cheese-engine/internal/chess/openingbook"
	"github.com/park285/cheese-engine/internal/domain"
	"github.com/park285/cheese-engine/internal/search"
)

const (
	defaultOpeningMaxPly    = 12
	defaultOpeningMinWeight = 1
	defaultAnalysisTTL      = 24 * time.Hour
)

// Result sources.
const (
	SourceBook   = "book"
	SourceCache  = "cache"
	SourceSearch = "search"
)

type OpeningOptions struct {
	MaxPly    int
	MinWeight int
}

// OpeningBook is satisfied by *openingbook.Book.
type OpeningBook interface {
	Lookup(fen string, moves []string) ([]openingbook.Result, error)
}

// AnalysisCache is satisfied by *cache.CacheService. Get leaves dst untouched
// on a miss.
type AnalysisCache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type EngineConfig struct {
	Pool     PoolConfig
	Book     OpeningBook
	Cache    AnalysisCache
	CacheTTL time.Duration
	Opening  OpeningOptions
	Logger   *zap.Logger
	// Seed fixes the humanizer's randomness when non-zero.
	Seed int64
}

type Engine struct {
	pool     *Pool
	book     OpeningBook
	cache    AnalysisCache
	cacheTTL time.Duration
	logger   *zap.Logger
	randMu   sync.Mutex
	rand     *rand.Rand
	opening  OpeningOptions
}

func NewEngine(cfg EngineConfig) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultAnalysisTTL
	}
	e := &Engine{
		pool:     NewPool(cfg.Pool),
		book:     cfg.Book,
		cache:    cfg.Cache,
		cacheTTL: ttl,
		logger:   logger,
		rand:     rand.New(rand.NewSource(seed)),
	}
	e.SetOpeningOptions(cfg.Opening)
	return e
}

func (e *Engine) SetOpeningOptions(opts OpeningOptions) {
	if opts.MaxPly <= 0 {
		opts.MaxPly = defaultOpeningMaxPly
	}
	if opts.MinWeight <= 0 {
		opts.MinWeight = defaultOpeningMinWeight
	}
	e.opening = opts
}

type EvaluateRequest struct {
	PresetName string
	FEN        string
	Moves      []string
	// Remaining is our clock; with a Tracker and a clock-following preset it
	// sets the time budget.
	Remaining time.Duration
	Tracker   *TimeTracker
}

type EvaluateResult struct {
	Preset         DifficultyPreset
	Duration       time.Duration
	Candidates     []Candidate
	Chosen         Candidate
	Blunder        bool
	EngineBestMove string
	Score          search.Score
	Depth          int
	SelDepth       int
	Nodes          uint64
	Source         string
	SearchID       string
	// Terminal is set when the position has no legal moves; Chosen is then
	// empty.
	Terminal search.Status
}

// Evaluate picks a move for the side to move in the position reached from
// req.FEN by req.Moves.
func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResult, error) {
	start := time.Now()

	preset, err := GetPreset(req.PresetName)
	if err != nil {
		return EvaluateResult{}, err
	}
	pos, err := board.New(req.FEN, req.Moves...)
	if err != nil {
		return EvaluateResult{}, err
	}

	adjustedPreset := preset.clone()
	randSrc := e.random()

	if candidates, chosen, ok := e.tryOpeningMove(req, pos, &adjustedPreset, randSrc); ok {
		res := EvaluateResult{
			Preset:         adjustedPreset,
			Duration:       time.Since(start),
			Candidates:     candidates,
			Chosen:         chosen,
			EngineBestMove: chosen.Move,
			Source:         SourceBook,
		}
		e.logComplete(res, search.TableStats{})
		return res, nil
	}

	var budget *TimeBudget
	if req.Tracker != nil && preset.UseClock && req.Remaining > 0 {
		b := req.Tracker.Budget(req.Remaining, pos.PieceCount())
		budget = &b
	}
	limits, err := SearchLimits(preset, budget)
	if err != nil {
		return EvaluateResult{}, err
	}

	key := analysisKey(pos, preset.Name)
	if analysis, ok := e.lookupAnalysis(ctx, key, limits); ok {
		candidates := candidatesFromAnalysis(analysis)
		candidates = e.applyPreferences(req, &adjustedPreset, candidates, randSrc)
		chosen, blunder, err := SelectCandidate(adjustedPreset, candidates, randSrc)
		if err != nil {
			return EvaluateResult{}, err
		}
		res := EvaluateResult{
			Preset:         adjustedPreset,
			Duration:       time.Since(start),
			Candidates:     candidates,
			Chosen:         chosen,
			Blunder:        blunder,
			EngineBestMove: analysis.BestMove,
			Score:          search.Score(analysis.Score),
			Depth:          analysis.Depth,
			SelDepth:       analysis.SelDepth,
			Nodes:          analysis.Nodes,
			Source:         SourceCache,
		}
		e.logComplete(res, search.TableStats{})
		return res, nil
	}

	searcher, err := e.pool.Acquire(ctx, optionsFromPreset(preset))
	if err != nil {
		return EvaluateResult{}, err
	}

	searchID := uuid.NewString()
	logger := e.logger.With(zap.String("search_id", searchID), zap.String("preset", preset.Name))
	logger.Debug("search-start", zap.String("fen", pos.FEN()), zap.String("limits", FormatLimits(limits)))
	searchCtx := search.WithIterationHook(ctx, func(info search.Info) {
		logger.Debug("search-iteration",
			zap.Int("depth", info.Depth),
			zap.Int("seldepth", info.SelDepth),
			zap.String("score", info.Score.String()),
			zap.Uint64("nodes", info.Nodes),
			zap.String("pv", search.FormatPV(info.PV)),
			zap.Duration("elapsed", info.Elapsed),
		)
	})

	if req.Tracker != nil {
		req.Tracker.Begin()
	}
	res, err := searcher.Search(searchCtx, pos, limits)
	e.pool.Release(searcher, err)
	if err != nil {
		return EvaluateResult{}, err
	}
	if req.Tracker != nil && res.HasMove() {
		req.Tracker.Finish(res.Score, res.Elapsed)
	}

	out := EvaluateResult{
		Preset:   adjustedPreset,
		Duration: res.Elapsed,
		Score:    res.Score,
		Depth:    res.Depth,
		SelDepth: res.SelDepth,
		Nodes:    res.Nodes,
		Source:   SourceSearch,
		SearchID: searchID,
		Terminal: res.Terminal,
	}
	if !res.HasMove() {
		logger.Info("search-terminal", zap.Stringer("status", res.Terminal))
		return out, nil
	}

	candidates := CandidatesFromResult(res, max(preset.MultiPV, preset.PrimaryChoices))
	if len(candidates) == 0 {
		return EvaluateResult{}, fmt.Errorf("engine returned no candidates")
	}
	if res.Depth > 0 {
		e.storeAnalysis(ctx, key, analysisFromResult(pos, preset.Name, limits, res, candidates))
	}

	candidates = e.applyPreferences(req, &adjustedPreset, candidates, randSrc)
	chosen, blunder, err := SelectCandidate(adjustedPreset, candidates, randSrc)
	if err != nil {
		return EvaluateResult{}, err
	}

	out.Preset = adjustedPreset
	out.Candidates = candidates
	out.Chosen = chosen
	out.Blunder = blunder
	out.EngineBestMove = res.BestMove.String()
	e.logComplete(out, res.Table)
	return out, nil
}

func (e *Engine) logComplete(res EvaluateResult, tt search.TableStats) {
	var nps uint64
	if secs := res.Duration.Seconds(); secs > 0 {
		nps = uint64(float64(res.Nodes) / secs)
	}
	e.logger.Info("search-complete",
		zap.String("search_id", res.SearchID),
		zap.String("preset", res.Preset.Name),
		zap.String("source", res.Source),
		zap.String("move", res.Chosen.Move),
		zap.String("best", res.EngineBestMove),
		zap.String("score", res.Score.String()),
		zap.Int("depth", res.Depth),
		zap.Uint64("nodes", res.Nodes),
		zap.Uint64("nps", nps),
		zap.Float64("tt_hit_rate", tt.HitRate()),
		zap.Bool("blunder", res.Blunder),
		zap.Duration("elapsed", res.Duration),
	)
}

// applyPreferences only knows move sequences from the initial position.
func (e *Engine) applyPreferences(req EvaluateRequest, p *DifficultyPreset, candidates []Candidate, r *rand.Rand) []Candidate {
	if !isStartpos(req.FEN) {
		return candidates
	}
	return applyOpeningPreferences(p, candidates, req.Moves, r)
}

func isStartpos(fen string) bool {
	fen = strings.TrimSpace(fen)
	return fen == "" || fen == "startpos" || fen == board.StartFEN
}

// analysisKey identifies a search result: the position without move counters,
// the preset, and the earlier positions that can still repeat.
func analysisKey(pos *board.Position, preset string) string {
	fields := strings.Fields(pos.FEN())
	if len(fields) > 4 {
		fields = fields[:4]
	}
	h := xxhash.New()
	_, _ = h.WriteString(strings.Join(fields, " "))
	_, _ = h.WriteString("|" + preset)
	for _, k := range pos.RecentHistory() {
		_, _ = h.WriteString("|" + strconv.FormatUint(k, 16))
	}
	var sum [8]byte
	return "analysis:" + hex.EncodeToString(h.Sum(sum[:0]))
}

func (e *Engine) lookupAnalysis(ctx context.Context, key string, limits search.Limits) (domain.Analysis, bool) {
	if e.cache == nil {
		return domain.Analysis{}, false
	}
	var a domain.Analysis
	if err := e.cache.Get(ctx, key, &a); err != nil {
		e.logger.Warn("analysis-cache-get", zap.String("key", key), zap.Error(err))
		return domain.Analysis{}, false
	}
	if a.BestMove == "" || len(a.Lines) == 0 {
		return domain.Analysis{}, false
	}
	if !analysisCovers(a, limits) {
		return domain.Analysis{}, false
	}
	return a, true
}

// analysisCovers reports whether a cached search is at least as good as one
// run under limits would be: it reached the depth limit, it proved a mate
// within its depth, or it had at least as much time.
func analysisCovers(a domain.Analysis, limits search.Limits) bool {
	switch {
	case a.Depth <= 0:
		return false
	case limits.Depth > 0 && a.Depth >= limits.Depth:
		return true
	case a.MateIn > 0 && 2*a.MateIn-1 <= a.Depth:
		return true
	case limits.MoveTime <= 0:
		return false
	}
	return a.MoveTimeMS >= limits.MoveTime.Milliseconds()
}

func (e *Engine) storeAnalysis(ctx context.Context, key string, a domain.Analysis) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, key, a, e.cacheTTL); err != nil {
		e.logger.Warn("analysis-cache-set", zap.String("key", key), zap.Error(err))
	}
}

func analysisFromResult(pos *board.Position, preset string, limits search.Limits, res search.Result, candidates []Candidate) domain.Analysis {
	return domain.Analysis{
		FEN:        pos.FEN(),
		Preset:     preset,
		BestMove:   res.BestMove.String(),
		Score:      int(res.Score),
		MateIn:     res.Score.MateMoves(),
		Depth:      res.Depth,
		SelDepth:   res.SelDepth,
		Nodes:      res.Nodes,
		MoveTimeMS: limits.MoveTime.Milliseconds(),
		Lines: lo.Map(candidates, func(c Candidate, _ int) domain.AnalysisLine {
			return domain.AnalysisLine{Move: c.Move, EvalCP: c.EvalCP, MateIn: c.MateIn, PV: c.Principal}
		}),
		CreatedAt: time.Now().UTC(),
	}
}

func candidatesFromAnalysis(a domain.Analysis) []Candidate {
	return lo.Map(a.Lines, func(l domain.AnalysisLine, _ int) Candidate {
		return Candidate{Move: l.Move, EvalCP: l.EvalCP, MateIn: l.MateIn, Principal: append([]string(nil), l.PV...)}
	})
}

func (e *Engine) random() *rand.Rand {
	e.randMu.Lock()
	seed := e.rand.Int63()
	e.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (e *Engine) SetRandomSeed(seed int64) {
	e.randMu.Lock()
	e.rand = rand.New(rand.NewSource(seed))
	e.randMu.Unlock()
}

func (e *Engine) PoolStats() map[string][2]int { return e.pool.Stats() }

func (e *Engine) Close() error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Close()
}
