package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cardsight/capture"
	"cardsight/config"
	"cardsight/controller"
	"cardsight/logging"
	"cardsight/store"
	"cardsight/strategy"
	"cardsight/table"
	"cardsight/vision"

	"github.com/olahol/melody"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// app 识别循环与面板共享的状态
type app struct {
	cfg      config.Config
	pipeline *vision.Pipeline
	session  *strategy.Session
	store    *store.Store
	sync     *controller.SyncController
	hub      *melody.Melody
	logger   *slog.Logger

	// syncMu 串行化牌局变更与落库，换靴清空快照后不会再写回旧牌靴的快照
	syncMu sync.Mutex

	mu      sync.RWMutex
	layout  table.Layout
	preview []byte
}

func newApp(cfg config.Config, pipeline *vision.Pipeline, session *strategy.Session, db *store.Store, hub *melody.Melody, logger *slog.Logger) *app {
	return &app{
		cfg:      cfg,
		pipeline: pipeline,
		session:  session,
		store:    db,
		sync:     controller.NewSyncController(db, hub, logger),
		hub:      hub,
		logger:   logger,
		layout:   table.DefaultLayout(),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "配置错误:", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)
	logger := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("无法打开数据库", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rect := vision.NewRectifier(rectifierConfig(cfg))
	lib, err := vision.LoadTemplateLibrary(cfg.TemplateDir, rect, logger)
	if err != nil {
		logger.Warn("模板库不可用，只能依赖文字识别", "dir", cfg.TemplateDir, "error", err)
	}
	defer lib.Close()

	ocr, closeOCR, err := newOCR(cfg)
	if err != nil {
		logger.Error("无法初始化 OCR", "engine", cfg.OCREngine, "error", err)
		os.Exit(1)
	}
	defer closeOCR()

	pipeline := vision.NewPipeline(
		vision.NewLocator(locatorConfig(cfg)),
		rect,
		logger,
		vision.NewRankClassifier(ocr, rankConfig(cfg), logger),
		vision.NewFeatureMatcher(lib, featureConfig(cfg), logger),
		vision.NewTemplateMatcher(lib, logger),
	)

	// cardsight batch <dir>：对带标注的图片目录输出识别报告
	if len(os.Args) > 2 && os.Args[1] == "batch" {
		stats, details, err := vision.BatchRecognize(ctx, pipeline, os.Args[2])
		if err != nil {
			logger.Error("批量识别失败", "dir", os.Args[2], "error", err)
			os.Exit(1)
		}
		vision.WriteBatchReport(os.Stdout, stats, details)
		return
	}

	session := strategy.NewSession(strategy.NewEngine(strategyConfig(cfg)), table.Dealer)
	tally, err := db.LoadTally(ctx)
	if err != nil {
		logger.Warn("无法恢复胜负统计", "error", err)
	}
	session.RestoreTally(tally)

	hub := melody.New()
	a := newApp(cfg, pipeline, session, db, hub, logger)

	src, err := capture.Open(captureOptions(cfg))
	if err != nil {
		logger.Error("无法打开画面来源", "source", cfg.CaptureSource, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	go func() {
		if err := a.monitorLoop(ctx, src); err != nil {
			logger.Error("识别循环已停止", "error", err)
		}
	}()

	srv := &http.Server{Addr: cfg.Addr, Handler: a.router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Close()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("服务器已启动", "addr", cfg.Addr, "stages", pipeline.Stages())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("服务器异常退出", "error", err)
		os.Exit(1)
	}
}

// monitorLoop 按固定间隔取帧识别。连续取帧失败达到上限时返回错误
func (a *app) monitorLoop(ctx context.Context, src capture.Source) error {
	ticker := time.NewTicker(a.cfg.CaptureInterval)
	defer ticker.Stop()

	failures := 0
	for {
		frame, err := src.Read(ctx)
		if err != nil {
			frame.Close()
			if ctx.Err() != nil {
				return nil
			}
			failures++
			a.logger.Error("获取画面失败", "failures", failures, "error", err)
			if failures >= a.cfg.MaxAcquisitionFailures {
				return fmt.Errorf("连续 %d 次获取画面失败: %w", failures, err)
			}
		} else {
			failures = 0
			if err := a.processFrame(ctx, frame); err != nil {
				a.logger.Error("处理画面失败", "error", err)
			}
			frame.Close()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// processFrame 各区域并行识别，按位置排序后交给牌局计算并同步
func (a *app) processFrame(ctx context.Context, frame gocv.Mat) error {
	regions := a.currentLayout().Split(frame)
	defer func() {
		for _, r := range regions {
			r.Close()
		}
	}()

	results := make([][]vision.Result, len(regions))
	g, gctx := errgroup.WithContext(ctx)
	for i, region := range regions {
		g.Go(func() error {
			res := a.pipeline.Process(gctx, region.Mat)
			vision.SortByPosition(res)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	obs := make([]strategy.Observation, 0, len(regions))
	for i, region := range regions {
		obs = append(obs, strategy.Observation{Region: region.Name, Labels: vision.Labels(results[i])})
		a.logger.Debug("区域识别完成", "region", region.Name, "cards", len(results[i]))
	}
	a.updatePreview(frame, regions, results)
	return a.commit(ctx, obs)
}

// commit 把一个周期的观察计入牌局并同步到存储和面板
func (a *app) commit(ctx context.Context, obs []strategy.Observation) error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	cycle := a.session.Apply(obs)
	return a.sync.SyncCycle(ctx, cycle.ShoeID, cycle.Count, cycle.Snapshots)
}

func (a *app) currentLayout() table.Layout {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.layout
}

func (a *app) setLayout(l table.Layout) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.layout = l
}

func newOCR(cfg config.Config) (vision.OCR, func(), error) {
	if cfg.OCREngine == "http" {
		return vision.NewHTTPOCR(cfg.OCREndpoint, cfg.OCRTimeout), func() {}, nil
	}
	t, err := vision.NewTesseractOCR()
	if err != nil {
		return nil, nil, err
	}
	return t, func() { _ = t.Close() }, nil
}

func locatorConfig(cfg config.Config) vision.LocatorConfig {
	c := vision.DefaultLocatorConfig()
	c.MinArea = cfg.MinCardArea
	return c
}

func rectifierConfig(cfg config.Config) vision.RectifierConfig {
	c := vision.DefaultRectifierConfig()
	c.Width, c.Height = cfg.TemplateWidth, cfg.TemplateHeight
	return c
}

func rankConfig(cfg config.Config) vision.RankConfig {
	c := vision.DefaultRankConfig()
	c.CornerWidth = cfg.CornerWidth
	c.CornerHeight = cfg.CornerHeight
	c.Attempts = cfg.OCRAttempts
	c.Timeout = cfg.OCRTimeout
	return c
}

func featureConfig(cfg config.Config) vision.FeatureConfig {
	return vision.FeatureConfig{Threshold: cfg.FeatureThreshold, BestMatches: cfg.FeatureBestMatches}
}

func strategyConfig(cfg config.Config) strategy.Config {
	return strategy.Config{
		AggressionPivot:       cfg.AggressionPivot,
		AggressiveThreshold:   cfg.AggressiveThreshold,
		ConservativeThreshold: cfg.ConservativeThreshold,
	}
}

func captureOptions(cfg config.Config) capture.Options {
	return capture.Options{
		Kind:         cfg.CaptureSource,
		Device:       cfg.CameraDevice,
		WindowTitles: cfg.WindowTitles,
		File:         cfg.FrameFile,
	}
}
