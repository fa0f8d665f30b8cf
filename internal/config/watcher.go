package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadRecorder はポリシー再読み込みの結果を記録する。
type ReloadRecorder interface {
	RecordPolicyReload(ok bool)
}

// PolicyWatcher はポリシーファイルの変更を監視し、PolicyStoreを更新する。
// エディタによる置き換え保存に対応するため、ファイルを含むディレクトリを監視する。
type PolicyWatcher struct {
	cfg      *Config
	store    *PolicyStore
	recorder ReloadRecorder
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	target   string
	debounce time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewPolicyWatcher はPolicyWatcherを生成する。recorderはnilでもよい。
func NewPolicyWatcher(cfg *Config, store *PolicyStore, recorder ReloadRecorder, logger *slog.Logger) (*PolicyWatcher, error) {
	if cfg.PolicyFile == "" {
		return nil, fmt.Errorf("policy file is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	target, err := filepath.Abs(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("resolve policy file path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create policy watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch policy directory: %w", err)
	}

	debounce := cfg.PolicyDebounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	return &PolicyWatcher{
		cfg:      cfg,
		store:    store,
		recorder: recorder,
		logger:   logger,
		watcher:  fsw,
		target:   target,
		debounce: debounce,
	}, nil
}

// Run はctxがキャンセルされるかCloseされるまで変更を監視する。
// 短時間に連続した変更はまとめて1回の再読み込みとする。
func (w *PolicyWatcher) Run(ctx context.Context) {
	defer w.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("policy watcher started", slog.String("path", w.target))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Warn("policy file removed, keeping current policy", slog.String("path", w.target))
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("policy watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			_ = w.Reload()
		}
	}
}

// Close は監視を停止する。Runを呼ばずに破棄する場合にも呼ぶこと。複数回呼んでもよい。
func (w *PolicyWatcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.watcher.Close()
	})
	return w.closeErr
}

// Reload はポリシーファイルを読み直してPolicyStoreを更新する。
// 読み込みに失敗した場合は現在のポリシーを維持してエラーを返す。
func (w *PolicyWatcher) Reload() error {
	settings, err := w.cfg.LoadSettings()
	if err != nil {
		w.logger.Warn("policy reload failed, keeping current policy",
			slog.String("path", w.target),
			slog.String("error", err.Error()),
		)
		w.record(false)
		return err
	}

	w.store.Store(settings)
	w.logger.Info("policy reloaded",
		slog.String("path", w.target),
		slog.Int("whitelist", len(settings.Policy.Whitelist)),
		slog.Int("blacklist", len(settings.Policy.Blacklist)),
		slog.Bool("fix_self_closing", settings.FixSelfClosing),
	)
	w.record(true)
	return nil
}

func (w *PolicyWatcher) record(ok bool) {
	if w.recorder != nil {
		w.recorder.RecordPolicyReload(ok)
	}
}
