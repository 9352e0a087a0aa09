package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"nanokernel/kbuf"
	"nanokernel/kclock"
	"nanokernel/kdisk"
	"nanokernel/kmetrics"
	"nanokernel/kpage"
)

// runWorkload builds a page allocator and a buffer cache sized per cfg,
// then fans out one goroutine per CPU slot that repeatedly allocates
// and frees pages on its own cpu id and reads/mutates/releases buffer
// cache blocks, reporting steal and eviction counts at the end.
func runWorkload(ctx context.Context, cfg *runConfig, log *logrus.Logger) error {
	alloc := kpage.NewAllocator(cfg.NCPU, cfg.PageSize, cfg.HeapSize)
	dev := kdisk.NewMemDevice(cfg.BlockSize)
	clk := kclock.NewSystemClock()
	cache := kbuf.NewCache(cfg.NBuf, cfg.NBucket, cfg.BlockSize, dev, clk)

	reg := prometheus.NewRegistry()
	pageMetrics := kmetrics.NewPageMetrics(reg, alloc, cfg.NCPU)
	bufMetrics := kmetrics.NewBufMetrics(reg, cache)

	log.WithFields(logrus.Fields{
		"ncpu":       cfg.NCPU,
		"frames":     alloc.NumFrames(),
		"nbuf":       cfg.NBuf,
		"nbucket":    cfg.NBucket,
		"iterations": cfg.Iters,
	}).Info("starting workload")

	var wg conc.WaitGroup
	for cpu := 0; cpu < cfg.NCPU; cpu++ {
		cpu := cpu
		wg.Go(func() {
			runWorker(ctx, cpu, cfg, alloc, cache, log)
		})
	}
	wg.Wait()

	pageMetrics.Sample()
	bufMetrics.Sample()

	hits, misses, evictions := cache.Stats()
	log.WithFields(logrus.Fields{
		"steals":    alloc.StealCount(),
		"hits":      hits,
		"misses":    misses,
		"evictions": evictions,
	}).Info("workload complete")

	fmt.Printf("steals=%d hits=%d misses=%d evictions=%d\n",
		alloc.StealCount(), hits, misses, evictions)
	return nil
}

func runWorker(ctx context.Context, cpu int, cfg *runConfig, alloc *kpage.PageAllocator, cache *kbuf.BufferCache, log *logrus.Logger) {
	held := make([]*kpage.Frame, 0, 4)
	for i := 0; i < cfg.Iters; i++ {
		f := alloc.Alloc(cpu)
		if f != nil {
			held = append(held, f)
		}
		if len(held) >= 4 {
			alloc.Free(cpu, held[0])
			held = held[1:]
		}

		blockNo := uint64((cpu*cfg.Iters + i) % (cfg.NBuf * 2))
		b, err := cache.Read(ctx, uint32(cpu), blockNo)
		if err != nil {
			log.WithError(err).WithField("cpu", cpu).Warn("read failed")
			continue
		}
		b.Data()[0]++
		if err := cache.Write(ctx, b); err != nil {
			log.WithError(err).WithField("cpu", cpu).Warn("write failed")
		}
		cache.Release(b)
	}
	for _, f := range held {
		alloc.Free(cpu, f)
	}
}
