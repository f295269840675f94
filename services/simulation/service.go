// Package simulation seeds an organization with sample policies and
// transactions so the dashboard has something to show.
package simulation

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	rules "github.com/upb/card-control-plane/internal/policy"
	"github.com/upb/card-control-plane/models"
	policysvc "github.com/upb/card-control-plane/services/policy"
)

// Description marks every simulated transaction.
const Description = "Simulation transaction"

// PolicyStore is the slice of the policy service the simulator needs.
type PolicyStore interface {
	Create(ctx context.Context, orgID uuid.UUID, in policysvc.CreateInput) (*models.Policy, error)
	ActivePolicies(ctx context.Context, orgID uuid.UUID) ([]*models.Policy, error)
}

// Recorder persists transactions. The ledger satisfies it.
type Recorder interface {
	Record(ctx context.Context, txn *models.Transaction) (bool, error)
}

// Auditor records simulation runs
type Auditor interface {
	LogSimulationRun(orgID uuid.UUID, industry string, generated int, requestID string) error
}

type samplePolicy struct {
	name       string
	expression string
}

type sampleTransaction struct {
	merchant string
	amount   models.Cents
	category models.BudgetCategory
}

var basePolicies = []samplePolicy{
	{"Travel Policy", "amount < 100000 && category == 'TRAVEL'"},
	{"Training Policy", "amount < 50000 && category == 'TRAINING'"},
	{"Equipment Policy", "amount < 200000 && category == 'EQUIPMENT'"},
}

var industryPolicies = map[string][]samplePolicy{
	"retail": {
		{"Inventory Policy", "amount < 300000 && category == 'DIAMOND_INVENTORY'"},
		{"Store Policy", "amount < 200000 && category == 'RETAIL_SPACE'"},
		{"Security Policy", "amount < 50000 && category == 'SECURITY'"},
	},
	"manufacturing": {
		{"Materials Policy", "amount < 400000 && category == 'PARTS_AND_MATERIALS'"},
		{"Equipment Policy", "amount < 600000 && category == 'EQUIPMENT'"},
		{"Production Policy", "amount < 300000 && category == 'MANUFACTURING'"},
	},
	"technology": {
		{"Cloud Policy", "amount < 250000 && category == 'EQUIPMENT'"},
		{"Software Policy", "amount < 200000 && category == 'TRAINING'"},
		{"Hardware Policy", "amount < 400000 && category == 'EQUIPMENT'"},
	},
}

var baseTransactions = []sampleTransaction{
	{"Office Supplies Co", 25000, models.CategoryEquipment},
	{"Cloud Services Inc", 150000, models.CategoryMarketing},
	{"Travel Agency", 75000, models.CategoryTravel},
	{"Training Institute", 50000, models.CategoryTraining},
}

var industryTransactions = map[string][]sampleTransaction{
	"retail": {
		{"Inventory Supplier", 200000, models.CategoryDiamondInventory},
		{"Store Renovation", 150000, models.CategoryRetailSpace},
		{"Security System", 45000, models.CategorySecurity},
	},
	"manufacturing": {
		{"Raw Materials Co", 300000, models.CategoryPartsAndMaterials},
		{"Factory Equipment", 500000, models.CategoryEquipment},
		{"Production Line", 250000, models.CategoryManufacturing},
	},
	"technology": {
		{"Cloud Provider", 200000, models.CategoryEquipment},
		{"Software Licenses", 150000, models.CategoryTraining},
		{"Server Hardware", 300000, models.CategoryEquipment},
	},
}

// Industries lists the industries with dedicated samples.
func Industries() []string {
	return []string{"retail", "manufacturing", "technology"}
}

// Input selects what to generate
type Input struct {
	Industry   string
	UpdateOnly bool
	RequestID  string
}

// Result lists what a run created
type Result struct {
	Policies     []*models.Policy      `json:"policies"`
	Transactions []*models.Transaction `json:"transactions"`
}

// Service runs simulations
type Service struct {
	policies PolicyStore
	recorder Recorder
	matcher  *rules.Matcher
	audit    Auditor
	logger   *zap.Logger
	intN     func(n int) int
}

// NewService creates a simulator. audit may be nil.
func NewService(policies PolicyStore, recorder Recorder, audit Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		policies: policies,
		recorder: recorder,
		matcher:  rules.NewMatcher(logger),
		audit:    audit,
		logger:   logger.With(zap.String("component", "simulation")),
		intN:     rand.Intn,
	}
}

// Run creates the sample policies (unless UpdateOnly) and records sample
// transactions decided by the organization's active policies. Unknown
// industries get the base samples only. Card spend is never touched.
func (s *Service) Run(ctx context.Context, orgID uuid.UUID, in Input) (*Result, error) {
	industry := strings.ToLower(strings.TrimSpace(in.Industry))
	result := &Result{
		Policies:     []*models.Policy{},
		Transactions: []*models.Transaction{},
	}

	if !in.UpdateOnly {
		for _, sp := range append(append([]samplePolicy{}, basePolicies...), industryPolicies[industry]...) {
			p, err := s.policies.Create(ctx, orgID, policysvc.CreateInput{
				Name:       sp.name,
				Expression: sp.expression,
				RequestID:  in.RequestID,
			})
			if err != nil {
				return nil, err
			}
			result.Policies = append(result.Policies, p)
		}
	}

	samples := append(append([]sampleTransaction{}, baseTransactions...), industryTransactions[industry]...)
	if in.UpdateOnly {
		samples = s.pickRandom(samples, 1+s.intN(2))
	}

	active, err := s.policies.ActivePolicies(ctx, orgID)
	if err != nil {
		return nil, err
	}

	for _, sample := range samples {
		txn := models.NewTransaction("sim_"+uuid.NewString(), sample.amount, sample.merchant, sample.category).
			WithOwner(&orgID, nil, "")
		txn.Description = Description

		decision := s.matcher.Match(active, rules.EvaluationContext(txn, time.Now()))
		if decision.Approved {
			txn.Approve()
		} else {
			txn.Decline(decision.Reason, decision.PolicyID())
		}

		if _, err := s.recorder.Record(ctx, txn); err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, txn)
	}

	s.logger.Info("simulation run",
		zap.String("org_id", orgID.String()),
		zap.String("industry", industry),
		zap.Bool("update_only", in.UpdateOnly),
		zap.Int("policies", len(result.Policies)),
		zap.Int("transactions", len(result.Transactions)))

	if s.audit != nil {
		_ = s.audit.LogSimulationRun(orgID, industry, len(result.Transactions), in.RequestID)
	}
	return result, nil
}

// pickRandom returns n distinct samples in random order
func (s *Service) pickRandom(samples []sampleTransaction, n int) []sampleTransaction {
	if n > len(samples) {
		n = len(samples)
	}
	picked := make([]sampleTransaction, 0, n)
	pool := append([]sampleTransaction{}, samples...)
	for i := 0; i < n; i++ {
		j := s.intN(len(pool))
		picked = append(picked, pool[j])
		pool = append(pool[:j], pool[j+1:]...)
	}
	return picked
}
