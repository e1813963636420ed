package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const seedReloadDebounce = 500 * time.Millisecond

// WatchSeedFile re-applies the seed file to the knowledge base whenever it is
// written. It blocks until ctx is done. The parent directory is watched so
// editors that replace the file on save are still picked up.
func WatchSeedFile(ctx context.Context, path string, knowledge *KnowledgeService) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	log.Printf("👁️  [KNOWLEDGE] Watching %s for changes", path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(seedReloadDebounce, func() {
				reloadSeed(ctx, path, knowledge)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  [KNOWLEDGE] Seed watcher error: %v", err)
		}
	}
}

func reloadSeed(ctx context.Context, path string, knowledge *KnowledgeService) {
	seed, err := LoadSeedKnowledge(path)
	if err != nil {
		// Half-written files land here; the next write event retries.
		log.Printf("⚠️  [KNOWLEDGE] Ignoring seed change: %v", err)
		return
	}
	changed, err := knowledge.ApplySeed(ctx, seed)
	if err != nil {
		log.Printf("❌ [KNOWLEDGE] Failed to apply seed file: %v", err)
		return
	}
	log.Printf("🔄 [KNOWLEDGE] Reloaded %s (%d entries changed)", path, changed)
}
