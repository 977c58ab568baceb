package lesson

import (
	"context"
	"fmt"
	"time"

	"lessonweaver/common"
)

// Deps bundles everything a pipeline invocation needs: collaborator clients,
// the read-only knowledge base, output locations, and tuning knobs. One Deps
// value is shared by all invocations; it holds no per-invocation state.
type Deps struct {
	Log *common.Logger

	Generator   TextGenerator
	Fetcher     LessonFetcher
	Extractor   TextExtractor
	Synthesizer SpeechSynthesizer
	Searcher    ImageSearcher
	Images      ImageFetcher

	KB KnowledgeBase

	AudioDir    string
	ImageDir    string
	FinalDir    string
	JSONDir     string
	MarkdownDir string

	// PublicBaseURL prefixes media and artifact paths in the emitted
	// Markdown and JSON documents.
	PublicBaseURL string

	// ConflictPolicy is "restrictive" or "drop" (see rule consolidation).
	ConflictPolicy string

	GenTimeout      time.Duration
	MaxAudioChunks  int
	MaxImageQueries int
}

func (d Deps) genTimeout() time.Duration {
	if d.GenTimeout <= 0 {
		return 60 * time.Second
	}
	return d.GenTimeout
}

func (d Deps) maxAudioChunks() int {
	if d.MaxAudioChunks <= 0 {
		return 5
	}
	return d.MaxAudioChunks
}

func (d Deps) maxImageQueries() int {
	if d.MaxImageQueries <= 0 {
		return 5
	}
	return d.MaxImageQueries
}

// Stage is one unit of the pipeline: it consumes the state and returns an
// extended copy, or an error that aborts the invocation.
type Stage struct {
	Name string
	Run  func(ctx context.Context, st State) (State, error)
}

// Options selects which optional stages a pipeline includes. There is one
// pipeline definition; variants differ only by these flags.
type Options struct {
	// DeriveRules runs the rule extraction/consolidation stage from the
	// student profile. When false the caller supplies State.Rules directly.
	DeriveRules bool

	// WithMedia runs narration synthesis and visual enrichment.
	WithMedia bool
}

// Pipeline is a fixed ordered sequence of stages over a shared state record.
type Pipeline struct {
	name   string
	log    *common.Logger
	stages []Stage
}

// New assembles the stage sequence for the given options.
func New(deps Deps, opts Options) *Pipeline {
	name := "lesson"
	if !opts.DeriveRules {
		name = "lesson-from-rules"
	}

	var stages []Stage
	if opts.DeriveRules {
		stages = append(stages, Stage{Name: "rules", Run: deps.rulesStage})
	}
	stages = append(stages,
		Stage{Name: "ingest", Run: deps.ingestStage},
		Stage{Name: "adapt", Run: deps.adaptStage},
	)
	if opts.WithMedia {
		stages = append(stages,
			Stage{Name: "narrate", Run: deps.narrateStage},
			Stage{Name: "enrich", Run: deps.enrichStage},
		)
	}
	stages = append(stages, Stage{Name: "emit", Run: deps.emitStage})

	return &Pipeline{name: name, log: deps.Log, stages: stages}
}

// Run drives the state through every stage in order. The first stage error
// aborts the run; the error carries the stage name and the original message.
func (p *Pipeline) Run(ctx context.Context, st State) (State, error) {
	for _, stage := range p.stages {
		p.log.Info("stage start", "pipeline", p.name, "stage", stage.Name)
		next, err := stage.Run(ctx, st)
		if err != nil {
			p.log.Error("stage failed", "pipeline", p.name, "stage", stage.Name, "error", err)
			return State{}, fmt.Errorf("pipeline %s: stage %q: %w", p.name, stage.Name, err)
		}
		st = next
	}
	return st, nil
}
