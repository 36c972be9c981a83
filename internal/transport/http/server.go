// Package http exposes the backtest engine over a small Gin API: submit and
// inspect runs, browse stored candles and symbol metadata, and download the
// CSV/HTML artifacts of a finished run.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bhavlab/internal/analysis/trend"
	"bhavlab/internal/backtest"
	"bhavlab/internal/market"
	"bhavlab/internal/meta"
	"bhavlab/internal/portfolio"
	"bhavlab/internal/report"
	"bhavlab/internal/strategy"

	"github.com/gin-gonic/gin"
)

type Server struct {
	addr    string
	sim     *backtest.Simulator
	results *backtest.ResultStore
	candles *market.Store
	meta    *meta.Store
	reg     *strategy.Registry
	router  *gin.Engine
}

type Config struct {
	Addr      string
	Simulator *backtest.Simulator
	Results   *backtest.ResultStore
	Candles   *market.Store
	Meta      *meta.Store
	Registry  *strategy.Registry
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Simulator == nil || cfg.Results == nil {
		return nil, errors.New("simulator and result store are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9984"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		sim:     cfg.Simulator,
		results: cfg.Results,
		candles: cfg.Candles,
		meta:    cfg.Meta,
		reg:     cfg.Registry,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/api/health", s.handleHealth)

	data := s.router.Group("/api/data")
	data.GET("/symbols", s.handleSymbols)
	data.GET("/manifest", s.handleManifest)
	data.GET("/candles", s.handleCandles)

	md := s.router.Group("/api/meta")
	md.GET("/symbols", s.handleMetaFilter)
	md.GET("/symbols/:symbol", s.handleMetaDetail)

	s.router.GET("/api/strategies", s.handleStrategies)
	s.router.GET("/api/analysis/trend", s.handleTrend)

	api := s.router.Group("/api/backtest")
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/equity", s.handleRunEquity)
	api.GET("/runs/:id/trades.csv", s.handleRunTradesCSV)
	api.GET("/runs/:id/report", s.handleRunReport)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSymbols(c *gin.Context) {
	if s.candles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "candle store not configured"})
		return
	}
	symbols, err := s.candles.ListSymbols(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

func (s *Server) handleManifest(c *gin.Context) {
	if s.candles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "candle store not configured"})
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	m, err := s.candles.ManifestFor(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": m})
}

func (s *Server) handleCandles(c *gin.Context) {
	if s.candles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "candle store not configured"})
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "500"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad limit"})
		return
	}
	series, err := s.candles.LoadSeries(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	candles, err := clipCandles(series.Candles, c.Query("start"), c.Query("end"), limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": series.Symbol, "candles": candles})
}

// clipCandles narrows a full history to [start, end] and keeps the most
// recent `limit` bars of whatever remains.
func clipCandles(candles []market.Candle, start, end string, limit int) ([]market.Candle, error) {
	if start != "" {
		from, err := time.ParseInLocation(market.DateLayout, start, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad start date %q", start)
		}
		for len(candles) > 0 && candles[0].Date.Before(from) {
			candles = candles[1:]
		}
	}
	if end != "" {
		to, err := time.ParseInLocation(market.DateLayout, end, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad end date %q", end)
		}
		for len(candles) > 0 && candles[len(candles)-1].Date.After(to) {
			candles = candles[:len(candles)-1]
		}
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func (s *Server) handleMetaDetail(c *gin.Context) {
	if s.meta == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metadata store not configured"})
		return
	}
	info, ok := s.meta.Get(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"info": info})
}

func (s *Server) handleMetaFilter(c *gin.Context) {
	if s.meta == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metadata store not configured"})
		return
	}
	if sector := c.Query("sector"); sector != "" {
		c.JSON(http.StatusOK, gin.H{"symbols": s.meta.FilterBySector(sector)})
		return
	}
	if ratio := c.Query("ratio"); ratio != "" {
		min, err := parseBound(c.DefaultQuery("min", "-1e18"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad min"})
			return
		}
		max, err := parseBound(c.DefaultQuery("max", "1e18"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad max"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"symbols": s.meta.FilterByRatio(ratio, min, max)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": s.meta.Symbols()})
}

func parseBound(raw string) (float64, error) {
	return strconv.ParseFloat(raw, 64)
}

func (s *Server) handleStrategies(c *gin.Context) {
	if s.reg == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "strategy registry not configured"})
		return
	}
	snap := s.reg.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version":    snap.Version,
		"loaded_at":  snap.LoadedAt,
		"strategies": snap.Definitions,
	})
}

// handleTrend classifies the stored universe by swing structure. With a
// `direction` query it returns only matching symbols; otherwise the full
// symbol→direction map.
func (s *Server) handleTrend(c *gin.Context) {
	if s.candles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "candle store not configured"})
		return
	}
	window, err := strconv.Atoi(c.DefaultQuery("window", "5"))
	if err != nil || window < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad window"})
		return
	}
	series, err := s.candles.LoadAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	det := trend.NewDetector(window)
	if want := strings.ToUpper(c.Query("direction")); want != "" {
		c.JSON(http.StatusOK, gin.H{"symbols": det.FilterUniverse(series, trend.Direction(want))})
		return
	}
	out := make(map[string]trend.Direction, len(series))
	for sym, sr := range series {
		out[sym] = det.Detect(sr)
	}
	c.JSON(http.StatusOK, gin.H{"trend": out})
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req backtest.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := s.sim.Submit(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	trades, err := s.loadTrades(c)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleRunEquity(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.results.GetRun(c.Request.Context(), id); err != nil {
		s.renderStoreError(c, err)
		return
	}
	equity, err := s.results.ListEquity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"equity": equity})
}

func (s *Server) handleRunTradesCSV(c *gin.Context) {
	trades, err := s.loadTrades(c)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-trades.csv", c.Param("id")))
	if err := report.WriteTradesCSV(c.Writer, trades); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) handleRunReport(c *gin.Context) {
	id := c.Param("id")
	run, err := s.results.GetRun(c.Request.Context(), id)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	if run.Status != backtest.RunStatusDone {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("run is %s, report needs a finished run", run.Status)})
		return
	}
	trades, err := s.results.ListTrades(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	equity, err := s.results.ListEquity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	res := &portfolio.Result{
		InitialValue:   run.InitialCapital,
		FinalValue:     run.FinalValue,
		TotalReturnPct: run.ReturnPct,
		TotalTrades:    run.TradeCount,
		WinRate:        run.WinRate,
		ProfitFactor:   run.ProfitFactor,
		Metrics:        run.Metrics,
		Trades:         trades,
		EquityCurve:    equity,
	}
	title := fmt.Sprintf("%s (%s)", run.StrategyID, shortID(run.ID))
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.RenderHTML(c.Writer, title, res); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) loadTrades(c *gin.Context) ([]portfolio.Trade, error) {
	id := c.Param("id")
	if _, err := s.results.GetRun(c.Request.Context(), id); err != nil {
		return nil, err
	}
	return s.results.ListTrades(c.Request.Context(), id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *Server) renderStoreError(c *gin.Context, err error) {
	if errors.Is(err, backtest.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
