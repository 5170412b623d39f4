package setup

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"balance_sheet_analyzer/pkg/core/config"
	"balance_sheet_analyzer/pkg/models"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	data := fmt.Sprintf(`
database:
  driver: sqlite
  data_dir: %q
llm:
  active_provider: deepseek
seed:
  tata:
    users:
      - {username: analyst_tata, password: pw, role: analyst}
    companies: [Tata Motors]
`, t.TempDir())
	cfg, err := config.Parse([]byte(data), func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func TestNewAgentManagerRegistersKeyedProviders(t *testing.T) {
	cfg := testConfig(t, map[string]string{"DEEPSEEK_API_KEY": "k", "QWEN_API_KEY": "q"})

	mgr, cleanup, err := NewAgentManager(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewAgentManager: %v", err)
	}
	defer cleanup()

	got := mgr.Available()
	if len(got) != 2 || got[0] != "deepseek" || got[1] != "qwen" {
		t.Errorf("Available = %v", got)
	}
	if _, err := mgr.GetChatStarter("analyst"); err != nil {
		t.Errorf("analyst has no chat transport: %v", err)
	}
}

func TestNewAgentManagerWithoutKeys(t *testing.T) {
	cfg := testConfig(t, map[string]string{"DEEPSEEK_API_KEY": "k"})
	cfg.Credentials.DeepSeekAPIKey = ""

	if _, _, err := NewAgentManager(context.Background(), cfg); !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("err = %v, want ErrMissingCredential", err)
	}
}

func TestOpenStoresSeedsEachGroup(t *testing.T) {
	cfg := testConfig(t, map[string]string{"DEEPSEEK_API_KEY": "k"})
	ctx := context.Background()

	stores, cleanup, err := OpenStores(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenStores: %v", err)
	}
	defer cleanup()

	st, ok := stores["tata"]
	if !ok || len(stores) != 1 {
		t.Fatalf("stores = %v", stores)
	}
	u, err := st.GetUser(ctx, "analyst_tata")
	if err != nil || u.Role != models.RoleAnalyst {
		t.Fatalf("GetUser = %+v, %v", u, err)
	}
	companies, err := st.ListCompanies(ctx)
	if err != nil || len(companies) != 1 || companies[0].Name != "Tata Motors" {
		t.Errorf("ListCompanies = %+v, %v", companies, err)
	}
}

func TestConversationFactory(t *testing.T) {
	cfg := testConfig(t, map[string]string{"DEEPSEEK_API_KEY": "k"})
	mgr, cleanup, err := NewAgentManager(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	factory, err := ConversationFactory(cfg, mgr)
	if err != nil {
		t.Fatalf("ConversationFactory: %v", err)
	}
	a, b := factory(), factory()
	if a == nil || a == b {
		t.Error("factory must build a fresh conversation per call")
	}
	if a.Company() != nil {
		t.Error("new conversation has a company selected")
	}
}
