package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
	"github.com/custodia-labs/veridoc-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/veridoc-core/internal/core/services"
)

const channelAddress = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

const testIssuer = "issuer-1"

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "discovery",
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("discovery feature suite failed")
	}
}

// testContext carries the per-scenario state: the mocked infrastructure,
// the orchestrator under test and the outcome of the last action.
type testContext struct {
	ledger    *mocks.MockLedgerClient
	cache     *mocks.MockCacheStore
	executor  *services.RetryExecutor
	discovery *services.DiscoveryOrchestrator

	result *domain.DiscoveryResult
	err    error

	// Executor scenario state
	callAttempts int
	call         func(ctx context.Context) error
	callErr      error
}

func newTestContext() *testContext {
	tc := &testContext{
		ledger: mocks.NewMockLedgerClient(),
		cache:  mocks.NewMockCacheStore(),
	}

	throttle := services.NewRequestThrottle(8, time.Second)
	tc.executor = services.NewRetryExecutor(throttle, nil)

	scanner := services.NewLedgerScanner(services.LedgerScannerConfig{
		Ledger:         tc.ledger,
		Cache:          tc.cache,
		Executor:       tc.executor,
		ChannelAddress: channelAddress,
	})
	tc.discovery = services.NewDiscoveryOrchestrator(services.DiscoveryOrchestratorConfig{
		Cache:      tc.cache,
		Scanner:    scanner,
		Reconciler: services.NewReconciler(tc.cache, nil),
	})

	return tc
}

func initializeScenario(sc *godog.ScenarioContext) {
	tc := newTestContext()

	sc.Step(`^the cache holds a document "([^"]*)" for holder "([^"]*)" titled "([^"]*)"$`, tc.cacheHoldsDocument)
	sc.Step(`^the ledger returns no signatures$`, tc.ledgerReturnsNoSignatures)
	sc.Step(`^the issuer scan finds document "([^"]*)" for holder "([^"]*)" titled "([^"]*)"$`, tc.issuerScanFindsDocument)
	sc.Step(`^the issuer scan finds a claim annotation for document "([^"]*)" and holder "([^"]*)"$`, tc.issuerScanFindsClaim)
	sc.Step(`^discovery runs for holder "([^"]*)"$`, tc.discoveryRuns)
	sc.Step(`^the result contains exactly the documents "([^"]*)"$`, tc.resultContainsExactly)
	sc.Step(`^the result contains no documents$`, tc.resultContainsNoDocuments)
	sc.Step(`^document "([^"]*)" has title "([^"]*)"$`, tc.documentHasTitle)

	sc.Step(`^a ledger call that is throttled (\d+) times before succeeding$`, tc.throttledCall)
	sc.Step(`^a ledger call that always fails with a permanent error$`, tc.permanentlyFailingCall)
	sc.Step(`^the executor runs the call with (\d+) attempts$`, tc.executorRunsCall)
	sc.Step(`^the call succeeds after exactly (\d+) invocations$`, tc.callSucceedsAfter)
	sc.Step(`^the call fails after exactly (\d+) invocations$`, tc.callFailsAfter)
}

// Discovery steps

func (tc *testContext) cacheHoldsDocument(id, holder, title string) error {
	return tc.cache.UpsertDocuments(context.Background(), []*domain.Document{{
		ID:        id,
		Issuer:    testIssuer,
		Holder:    holder,
		Type:      "degree",
		Title:     title,
		IssueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}})
}

func (tc *testContext) ledgerReturnsNoSignatures() error {
	// Mock default: every listing returns an empty signature set
	return nil
}

func (tc *testContext) issuerScanFindsDocument(id, holder, title string) error {
	return tc.publishAnnotation(&domain.AnnotationPayload{
		App:            domain.AppTag,
		DocumentID:     id,
		Issuer:         testIssuer,
		Holder:         holder,
		Type:           "degree",
		Title:          title,
		IssuedAt:       "2026-03-01T00:00:00Z",
		CredentialHash: "feedfacefeedface",
	})
}

func (tc *testContext) issuerScanFindsClaim(id, holder string) error {
	return tc.publishAnnotation(&domain.AnnotationPayload{
		App:            domain.AppTag,
		Action:         domain.ActionClaim,
		DocumentID:     id,
		Issuer:         testIssuer,
		Holder:         holder,
		Type:           "degree",
		Title:          "Diploma",
		IssuedAt:       "2026-03-01T00:00:00Z",
		CredentialHash: "feedfacefeedface",
	})
}

// publishAnnotation scripts the ledger so the issuer scan discovers a
// single annotation transaction carrying the given payload.
func (tc *testContext) publishAnnotation(payload *domain.AnnotationPayload) error {
	if err := tc.cache.AddIssuers(context.Background(), []string{testIssuer}); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	signature := "sig-" + payload.DocumentID

	tc.ledger.GetSignaturesForAddressFn = func(ctx context.Context, address string, limit int) ([]*domain.SignatureInfo, error) {
		if address != testIssuer {
			return nil, nil
		}
		return []*domain.SignatureInfo{{Signature: signature, Slot: 10}}, nil
	}
	tc.ledger.GetTransactionFn = func(ctx context.Context, sig string) (*domain.LedgerTransaction, error) {
		if sig != signature {
			return nil, domain.ErrNotFound
		}
		return &domain.LedgerTransaction{
			Signature: sig,
			Slot:      10,
			Instructions: []domain.LedgerInstruction{
				{ProgramID: channelAddress, Data: data},
			},
		}, nil
	}
	return nil
}

func (tc *testContext) discoveryRuns(holder string) error {
	tc.result, tc.err = tc.discovery.Discover(context.Background(), holder)
	return tc.err
}

func (tc *testContext) resultContainsExactly(ids string) error {
	if tc.result == nil {
		return errors.New("discovery has not run")
	}
	want := map[string]bool{}
	for _, id := range splitIDs(ids) {
		want[id] = true
	}
	if len(tc.result.Documents) != len(want) {
		return fmt.Errorf("expected %d documents, got %d", len(want), len(tc.result.Documents))
	}
	for _, doc := range tc.result.Documents {
		if !want[doc.ID] {
			return fmt.Errorf("unexpected document %s in result", doc.ID)
		}
	}
	return nil
}

func (tc *testContext) resultContainsNoDocuments() error {
	if tc.result == nil {
		return errors.New("discovery has not run")
	}
	if len(tc.result.Documents) != 0 {
		return fmt.Errorf("expected no documents, got %d", len(tc.result.Documents))
	}
	return nil
}

func (tc *testContext) documentHasTitle(id, title string) error {
	for _, doc := range tc.result.Documents {
		if doc.ID == id {
			if doc.Title != title {
				return fmt.Errorf("expected title %q, got %q", title, doc.Title)
			}
			return nil
		}
	}
	return fmt.Errorf("document %s not in result", id)
}

// Executor steps

func (tc *testContext) throttledCall(failures int) error {
	tc.callAttempts = 0
	tc.call = func(ctx context.Context) error {
		tc.callAttempts++
		if tc.callAttempts <= failures {
			return &domain.ThrottledError{Message: "429 too many requests"}
		}
		return nil
	}
	return nil
}

func (tc *testContext) permanentlyFailingCall() error {
	tc.callAttempts = 0
	tc.call = func(ctx context.Context) error {
		tc.callAttempts++
		return errors.New("instruction rejected")
	}
	return nil
}

func (tc *testContext) executorRunsCall(maxAttempts int) error {
	tc.callErr = tc.executor.Execute(context.Background(), maxAttempts, time.Second, tc.call)
	return nil
}

func (tc *testContext) callSucceedsAfter(invocations int) error {
	if tc.callErr != nil {
		return fmt.Errorf("expected success, got %v", tc.callErr)
	}
	if tc.callAttempts != invocations {
		return fmt.Errorf("expected %d invocations, got %d", invocations, tc.callAttempts)
	}
	return nil
}

func (tc *testContext) callFailsAfter(invocations int) error {
	if tc.callErr == nil {
		return errors.New("expected the call to fail")
	}
	if errors.Is(tc.callErr, domain.ErrExhaustedRetries) {
		return fmt.Errorf("permanent error was retried: %v", tc.callErr)
	}
	if tc.callAttempts != invocations {
		return fmt.Errorf("expected %d invocations, got %d", invocations, tc.callAttempts)
	}
	return nil
}

func splitIDs(ids string) []string {
	var out []string
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
