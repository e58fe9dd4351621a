// Command logistics-seed loads a JSON fixture of resource requests into the
// configured store. It is used to prime demo and staging environments and to
// smoke-test a storage backend end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"logisticscore/internal/core"
	"logisticscore/pkg/domain"
)

type seedItem struct {
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
}

type seedRequest struct {
	IncidentID       string     `json:"incident_id"`
	Title            string     `json:"title"`
	Section          string     `json:"section"`
	Priority         string     `json:"priority"`
	Justification    string     `json:"justification,omitempty"`
	DeliveryLocation string     `json:"delivery_location,omitempty"`
	NeededBy         *time.Time `json:"needed_by,omitempty"`
	Training         bool       `json:"training,omitempty"`
	Submit           bool       `json:"submit,omitempty"`
	Items            []seedItem `json:"items"`
}

type fixture struct {
	Actor    string        `json:"actor"`
	Requests []seedRequest `json:"requests"`
}

func main() {
	path := flag.String("fixture", "", "path to the JSON fixture file")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: logistics-seed -fixture <file.json>")
		os.Exit(2)
	}

	logger := logrus.New()
	if err := run(context.Background(), *path, logger); err != nil {
		logger.WithError(err).Fatal("seed failed")
	}
}

func run(ctx context.Context, path string, logger *logrus.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}
	if fx.Actor == "" {
		fx.Actor = "seed"
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		return err
	}
	store, err := core.OpenPersistentStore(cfg, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	svc := core.NewService(store,
		core.WithLogger(core.NewLogrusLogger(logger)),
		core.WithIncidentResolver(core.StaticIncidentResolver(cfg.ActiveIncident)),
	)
	ctx = domain.WithActor(ctx, fx.Actor)

	for _, seed := range fx.Requests {
		if err := seedOne(ctx, svc, seed); err != nil {
			return fmt.Errorf("seed %q: %w", seed.Title, err)
		}
	}
	logger.WithField("requests", len(fx.Requests)).Info("fixture loaded")
	return nil
}

func seedOne(ctx context.Context, svc *core.Service, seed seedRequest) error {
	created, _, err := svc.CreateRequest(ctx, domain.ResourceRequest{
		IncidentID:       seed.IncidentID,
		Title:            seed.Title,
		Section:          seed.Section,
		Priority:         domain.Priority(seed.Priority),
		Justification:    seed.Justification,
		DeliveryLocation: seed.DeliveryLocation,
		NeededBy:         seed.NeededBy,
		Training:         seed.Training,
	})
	if err != nil {
		return err
	}
	version := created.Version
	for _, item := range seed.Items {
		if _, _, err := svc.AddItem(ctx, created.ID, version, domain.RequestItem{
			Kind:        item.Kind,
			Description: item.Description,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
		}); err != nil {
			return err
		}
		version++
	}
	if seed.Submit {
		if _, _, err := svc.TransitionStatus(ctx, created.ID, version, domain.StatusSubmitted, nil); err != nil {
			return err
		}
	}
	return nil
}
