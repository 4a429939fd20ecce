package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"
	_ "github.com/joho/godotenv/autoload"
	"github.com/olekukonko/tablewriter"

	"github.com/skybridge-ai/bedrock-gateway/common/logger"
	"github.com/skybridge-ai/bedrock-gateway/model"
)

const commandTimeout = 30 * time.Second

var validate = validator.New()

const usageText = `keyadmin manages gateway API keys and the DynamoDB schema.

Commands:
  create         mint a key:     keyadmin create --user <id> [--tier default] [--rate-limit 0] [--tpm-limit 0] [--monthly-budget 0]
  list           print all keys: keyadmin list [--all]
  update         patch a key:    keyadmin update --key sk-... [--tier ...] [--rate-limit N] [--tpm-limit N] [--monthly-budget USD]
  deactivate     switch one off: keyadmin deactivate --key sk-... [--reason manual]
  ensure-tables  create any missing DynamoDB tables
`

func main() {
	logger.SetupLogger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Print(usageText)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	model.InitDB()

	var err error
	switch command {
	case "create":
		err = runCreate(ctx, os.Stdout, args)
	case "list":
		err = runList(ctx, os.Stdout, args)
	case "update":
		err = runUpdate(ctx, args)
	case "deactivate":
		err = runDeactivate(ctx, args)
	case "ensure-tables":
		err = model.EnsureTables(ctx, model.DB)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usageText)
		os.Exit(2)
	}
	if err != nil {
		logger.Logger.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}

// createSpec is the validated shape of a create invocation.
type createSpec struct {
	UserID        string  `validate:"required,max=128"`
	Tier          string  `validate:"oneof=default flex priority reserved"`
	RateLimit     int     `validate:"gte=0"`
	TPMLimit      int     `validate:"gte=0"`
	MonthlyBudget float64 `validate:"gte=0"`
}

// runCreate mints a key and prints it on its own line so scripts can capture
// it; the identifier is shown exactly once and never logged.
func runCreate(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	user := fs.String("user", "", "owner of the new key")
	tier := fs.String("tier", model.TierDefault, "scheduling tier: default, flex, priority or reserved")
	rateLimit := fs.Int("rate-limit", 0, "requests per window, 0 uses the server default")
	tpmLimit := fs.Int("tpm-limit", 0, "tokens per minute, 0 means unlimited")
	budget := fs.Float64("monthly-budget", 0, "monthly budget in USD, 0 means unlimited")
	if err := fs.Parse(args); err != nil {
		return err
	}

	spec := createSpec{
		UserID:        *user,
		Tier:          *tier,
		RateLimit:     *rateLimit,
		TPMLimit:      *tpmLimit,
		MonthlyBudget: *budget,
	}
	if err := validate.Struct(&spec); err != nil {
		return errors.Wrap(err, "invalid key parameters")
	}

	key := model.NewKeyContext(spec.UserID, spec.Tier, spec.RateLimit, spec.MonthlyBudget)
	key.TPMLimit = spec.TPMLimit
	if err := model.CreateKey(ctx, key); err != nil {
		return errors.Wrap(err, "create key")
	}

	fmt.Fprintln(out, key.APIKey)
	logger.Logger.Info("api key created",
		zap.String("user_id", key.UserID),
		zap.String("tier", key.Tier))
	return nil
}

func runList(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	all := fs.Bool("all", false, "include deactivated keys")
	if err := fs.Parse(args); err != nil {
		return err
	}

	keys, err := model.ListKeys(ctx)
	if err != nil {
		return errors.Wrap(err, "list keys")
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt < keys[j].CreatedAt })

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"API Key", "User", "Tier", "Rate Limit", "Budget", "MTD Spend", "Active", "Created"})
	for _, key := range keys {
		if !*all && !key.Active {
			continue
		}
		table.Append([]string{
			key.APIKey,
			key.UserID,
			key.Tier,
			strconv.Itoa(key.RateLimit),
			formatBudget(key.MonthlyBudget),
			fmt.Sprintf("%.2f", key.BudgetUsedMTD),
			strconv.FormatBool(key.Active),
			key.CreatedAt,
		})
	}
	table.Render()
	return nil
}

// keyPatch carries the fields update may change. Zero values mean "keep the
// stored value" and are skipped when the patch is copied onto the row.
type keyPatch struct {
	Tier          string  `validate:"omitempty,oneof=default flex priority reserved"`
	RateLimit     int     `validate:"gte=0"`
	TPMLimit      int     `validate:"gte=0"`
	MonthlyBudget float64 `validate:"gte=0"`
}

func runUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	apiKey := fs.String("key", "", "key to update")
	tier := fs.String("tier", "", "new tier, empty keeps the current one")
	rateLimit := fs.Int("rate-limit", 0, "new request limit, 0 keeps the current one")
	tpmLimit := fs.Int("tpm-limit", 0, "new token limit, 0 keeps the current one")
	budget := fs.Float64("monthly-budget", 0, "new monthly budget, 0 keeps the current one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *apiKey == "" {
		return errors.New("--key is required")
	}

	patch := keyPatch{Tier: *tier, RateLimit: *rateLimit, TPMLimit: *tpmLimit, MonthlyBudget: *budget}
	if err := validate.Struct(&patch); err != nil {
		return errors.Wrap(err, "invalid key parameters")
	}

	key, err := model.GetKey(ctx, *apiKey)
	if err != nil {
		return errors.Wrap(err, "load key")
	}
	if err := copier.CopyWithOption(key, &patch, copier.Option{IgnoreEmpty: true}); err != nil {
		return errors.Wrap(err, "apply patch")
	}
	if err := model.SaveKey(ctx, key); err != nil {
		return errors.Wrap(err, "save key")
	}

	logger.Logger.Info("api key updated",
		zap.String("user_id", key.UserID),
		zap.String("tier", key.Tier),
		zap.Int("rate_limit", key.RateLimit))
	return nil
}

func runDeactivate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deactivate", flag.ExitOnError)
	apiKey := fs.String("key", "", "key to deactivate")
	reason := fs.String("reason", "manual", "reason stored on the row")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *apiKey == "" {
		return errors.New("--key is required")
	}

	if err := model.DeactivateKey(ctx, *apiKey, *reason); err != nil {
		return errors.Wrap(err, "deactivate key")
	}
	logger.Logger.Info("api key deactivated", zap.String("reason", *reason))
	return nil
}

func formatBudget(budget float64) string {
	if budget <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%.2f", budget)
}
