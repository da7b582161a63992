package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/jordanlanch/leadrouter/config"
	"github.com/jordanlanch/leadrouter/pkg/models"
	"github.com/jordanlanch/leadrouter/pkg/pools"
	"github.com/jordanlanch/leadrouter/pkg/store"
)

var campaigns = []string{
	"spring-open-house", "luxury-waterfront", "first-time-buyers",
	"downtown-condos", "suburban-family", "investment-properties",
}

var propertyTypes = []string{"house", "condo", "townhouse", "land", "commercial"}

func main() {
	tenants := flag.Int("tenants", 2, "number of demo tenants")
	agentsPerTenant := flag.Int("agents", 4, "agents per tenant")
	leadsPerTenant := flag.Int("leads", 25, "leads per tenant")
	seed := flag.Int64("seed", 0, "gofakeit seed (0 = random)")
	flag.Parse()

	gofakeit.Seed(*seed)

	cfg := config.Load()
	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer st.Close()

	poolSvc := pools.NewService(st)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for tenantID := 1; tenantID <= *tenants; tenantID++ {
		if err := seedTenant(ctx, st, poolSvc, tenantID, *agentsPerTenant, *leadsPerTenant); err != nil {
			log.Fatalf("❌ Failed to seed tenant %d: %v", tenantID, err)
		}
	}

	log.Printf("✅ Seeded %d tenants (%d agents, %d leads each)", *tenants, *agentsPerTenant, *leadsPerTenant)
}

func seedTenant(ctx context.Context, st *store.Store, poolSvc *pools.Service, tenantID, agentCount, leadCount int) error {
	defaultPool, escalationPool, err := poolSvc.EnsureTenantPools(ctx, tenantID)
	if err != nil {
		return err
	}

	capacity := 10
	rotation := make([]models.AgentConfig, 0, agentCount)
	for i := 0; i < agentCount; i++ {
		agent := &models.Agent{
			TenantID: tenantID,
			Name:     gofakeit.Name(),
			Email:    gofakeit.Email(),
			Enabled:  true,
			Capacity: &capacity,
		}
		id, err := st.CreateAgent(ctx, agent)
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}
		rotation = append(rotation, models.AgentConfig{
			AgentID: id,
			Enabled: true,
			// Give the first agent double weight so the demo rotation is
			// visibly uneven.
			LeadsPerRound: 1 + boolToInt(i == 0),
		})
	}

	if err := st.SaveConfig(ctx, &models.AssignmentConfig{
		TenantID:             tenantID,
		Method:               models.MethodRoundRobin,
		Agents:               rotation,
		SLAMinutes:           30,
		MaxAutoReassignments: 2,
		RuleFallback:         models.FallbackRoundRobin,
		DefaultPoolID:        defaultPool,
		EscalationPoolID:     escalationPool,
		SweepIntervalSeconds: 60,
	}); err != nil {
		return err
	}

	for i := 0; i < leadCount; i++ {
		lead := &models.Lead{
			TenantID:     tenantID,
			Campaign:     campaigns[gofakeit.Number(0, len(campaigns)-1)],
			Budget:       float64(gofakeit.Number(50_000, 2_000_000)),
			Location:     gofakeit.City(),
			PropertyType: propertyTypes[gofakeit.Number(0, len(propertyTypes)-1)],
		}
		if _, err := st.CreateLead(ctx, lead); err != nil {
			return fmt.Errorf("failed to create lead: %w", err)
		}
	}

	log.Printf("  Tenant %d: %d agents, %d leads, pools %d/%d",
		tenantID, agentCount, leadCount, defaultPool, escalationPool)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
