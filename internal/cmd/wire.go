package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jayminwest/kota-gateway/internal/attention"
	"github.com/jayminwest/kota-gateway/internal/classify"
	"github.com/jayminwest/kota-gateway/internal/config"
	"github.com/jayminwest/kota-gateway/internal/dispatch"
	"github.com/jayminwest/kota-gateway/internal/journal"
)

// buildPipeline assembles the attention pipeline shared by serve and
// process: config store, classifier, transports, and (optionally) the
// journal. The caller owns closing the returned journal store.
func buildPipeline(cfg *config.Config, withJournal bool) (*attention.Pipeline, *config.Store, *dispatch.Manager, *journal.Store, error) {
	store := config.NewStore(cfg.AttentionConfigPath())
	if err := store.EnsureDefaults(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("ensuring attention config: %w", err)
	}
	if err := store.Load(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("loading attention config: %w", err)
	}
	policy := store.Current()

	classifier, err := classify.New(policy.Guardrails, cfg.ClassifierAPIKey)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("building classifier: %w", err)
	}

	manager := dispatch.NewManager()
	manager.Register("console", dispatch.NewConsoleTransport())
	if cfg.SlackWebhookURL != "" {
		target := policy.DispatchTargets["slack"]
		manager.Register("slack", dispatch.NewSlackTransport(cfg.SlackWebhookURL, target))
	} else {
		log.Warn().Msg("slack webhook URL not set - slack channel unregistered")
	}

	var j *journal.Store
	if withJournal {
		j, err = journal.NewStore(cfg.JournalDBPath())
		if err != nil {
			// The journal is observability, not delivery; run without it.
			log.Warn().Err(err).Msg("journal_unavailable")
			j = nil
		}
	}

	pipeline := attention.NewPipeline(attention.PipelineConfig{
		Ingestor:    attention.NewIngestor(attention.MetadataEnricher()),
		Classifier:  classifier,
		Coordinator: attention.NewCoordinator(nil),
		Dispatcher:  manager,
		Store:       store,
		Journal:     journalOrNil(j),
	})

	return pipeline, store, manager, j, nil
}

// journalOrNil avoids storing a typed-nil *journal.Store inside the
// attention.Journal interface, which would defeat the pipeline's nil check.
func journalOrNil(j *journal.Store) attention.Journal {
	if j == nil {
		return nil
	}
	return j
}
