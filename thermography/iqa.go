package thermography

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"thermopipe/grouping"
	"thermopipe/stage"
	"thermopipe/store"
	"thermopipe/types"
)

// IQA is the quality gate stage. Every acquired image is scored, scores
// strictly below the BRISQUE threshold pass, and composite groups advance
// only when all three members pass. A single failing member discards the
// whole group: downstream enrichment needs complete triplets.
type IQA struct {
	log       *logrus.Entry
	dirs      stage.DirStore
	scorer    Scorer
	threshold float64
	workers   int

	runStore *store.Store
	runID    int64

	paths   []string
	groups  []types.CompositeGroup
	scores  map[string]float64
	records []types.QualityRecord
	summary types.GateSummary
}

// NewIQA creates the quality gate stage. workers bounds concurrent scoring;
// values below one mean sequential scoring.
func NewIQA(log *logrus.Entry, dirs stage.DirStore, scorer Scorer, threshold float64, workers int, runStore *store.Store, runID int64) *IQA {
	if workers < 1 {
		workers = 1
	}
	return &IQA{
		log:       log,
		dirs:      dirs,
		scorer:    scorer,
		threshold: threshold,
		workers:   workers,
		runStore:  runStore,
		runID:     runID,
	}
}

func (q *IQA) Name() string { return "iqa" }

// Load resolves the acquired image set and partitions it into composite
// groups. Malformed names and incomplete groups fail here, before any
// scoring work is spent.
func (q *IQA) Load(upstream *stage.Handoff) error {
	if upstream != nil {
		q.paths = upstream.Paths
	} else {
		paths, err := q.dirs.ListImages(q.Name(), stage.AcquiredDir, stage.ImageExtensions)
		if err != nil {
			return err
		}
		q.paths = paths
	}

	groups, err := grouping.Partition(q.paths)
	if err != nil {
		return err
	}
	q.groups = groups

	q.log.WithFields(logrus.Fields{"images": len(q.paths), "groups": len(groups)}).Info("images loaded")
	return nil
}

// Process scores every image and applies the gate per composite group.
func (q *IQA) Process() error {
	if err := q.scoreAll(); err != nil {
		return err
	}

	q.records = q.records[:0]
	q.summary = types.GateSummary{}

	for _, group := range q.groups {
		rec := types.QualityRecord{
			CompositeName: grouping.CompositeName(group.Key),
			Paths:         group.Paths(),
			CompositePass: true,
		}
		for _, path := range rec.Paths {
			score := q.scores[path]
			passed := score < q.threshold
			rec.Scores = append(rec.Scores, score)
			rec.Passed = append(rec.Passed, passed)
			if passed {
				q.summary.ImagesPassed++
			} else {
				rec.CompositePass = false
			}
			q.summary.ImagesTotal++
		}

		q.summary.GroupsTotal++
		if rec.CompositePass {
			q.summary.GroupsPassed++
		} else {
			q.log.WithFields(logrus.Fields{
				"group":  rec.CompositeName,
				"scores": rec.Scores,
			}).Warn("composite group rejected by quality gate")
		}
		q.records = append(q.records, rec)
	}

	q.logScoreDistribution()
	q.log.WithFields(logrus.Fields{
		"images_passed": q.summary.ImagesPassed,
		"images_total":  q.summary.ImagesTotal,
		"groups_passed": q.summary.GroupsPassed,
		"groups_total":  q.summary.GroupsTotal,
		"threshold":     q.threshold,
	}).Info("quality gate applied")
	return nil
}

// scoreAll scores every image with a bounded worker pool. The first scoring
// error aborts the stage; a score the gate cannot trust is not a reject, it
// is a failure.
func (q *IQA) scoreAll() error {
	type result struct {
		path  string
		score float64
		err   error
	}

	results := make(chan result, len(q.paths))
	semaphore := make(chan struct{}, q.workers)
	var wg sync.WaitGroup

	for _, path := range q.paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			score, err := q.scorer.Score(path)
			results <- result{path: path, score: score, err: err}
		}(path)
	}

	wg.Wait()
	close(results)

	q.scores = make(map[string]float64, len(q.paths))
	for res := range results {
		if res.err != nil {
			return fmt.Errorf("scoring %s: %w", res.path, res.err)
		}
		q.scores[res.path] = res.score
	}
	return nil
}

// logScoreDistribution reports min, max, mean and decile buckets of the
// scores at debug level. Useful when tuning the threshold for a new camera
// or sample material.
func (q *IQA) logScoreDistribution() {
	if len(q.scores) == 0 {
		return
	}

	scores := make([]float64, 0, len(q.scores))
	for _, s := range q.scores {
		scores = append(scores, s)
	}
	sort.Float64s(scores)

	var sum float64
	buckets := make([]int, 10)
	for _, s := range scores {
		sum += s
		idx := int(s / 10)
		if idx > 9 {
			idx = 9
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx]++
	}

	q.log.WithFields(logrus.Fields{
		"min":     math.Round(scores[0]*100) / 100,
		"max":     math.Round(scores[len(scores)-1]*100) / 100,
		"mean":    math.Round(sum/float64(len(scores))*100) / 100,
		"buckets": buckets,
	}).Debug("score distribution")
}

// Save copies the members of passing groups into 2.IQA_images and records
// every group's gate outcome, pass or fail, to the run store.
func (q *IQA) Save() (*stage.Handoff, error) {
	start := time.Now()

	dir, err := q.dirs.Replace(stage.IQADir)
	if err != nil {
		return nil, err
	}

	var saved []string
	for _, rec := range q.records {
		if !rec.CompositePass {
			continue
		}
		for _, path := range rec.Paths {
			destPath, err := stage.CopyFile(path, dir)
			if err != nil {
				return nil, err
			}
			saved = append(saved, destPath)
		}
	}
	sort.Strings(saved)

	if q.runStore != nil {
		if err := q.runStore.RecordQuality(q.runID, q.records); err != nil {
			return nil, err
		}
		report := types.StageReport{
			Stage:      q.Name(),
			ImagesIn:   len(q.paths),
			ImagesOut:  len(saved),
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err := q.runStore.RecordStage(q.runID, report); err != nil {
			return nil, err
		}
	}

	q.log.WithFields(logrus.Fields{"count": len(saved), "dir": dir}).Info("images saved")
	return &stage.Handoff{Dir: dir, Paths: saved}, nil
}

// Summary returns the aggregated gate outcome of the last Process call.
func (q *IQA) Summary() types.GateSummary {
	return q.summary
}
