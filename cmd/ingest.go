package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deal-intake/internal/fetcher"
	"github.com/sells-group/deal-intake/internal/model"
	"github.com/sells-group/deal-intake/internal/pipeline"
)

var (
	ingestDeal        string
	ingestURLs        []string
	ingestOpportunity string
	ingestTypes       []string
	ingestForce       bool
	ingestJSON        bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Process documents for a deal",
	Long: "Loads documents from local paths, URLs, or a Salesforce opportunity, " +
		"runs the intake pipeline, and commits the validated envelope. " +
		"Already-processed documents with unchanged content are skipped unless --force is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var sources []fetcher.Source
		if len(args) > 0 {
			sources = append(sources, &fetcher.LocalSource{Paths: args})
		}
		if len(ingestURLs) > 0 {
			sources = append(sources, &fetcher.HTTPSource{URLs: ingestURLs})
		}
		if ingestOpportunity != "" {
			sfClient, err := initSalesforce()
			if err != nil {
				return err
			}
			sources = append(sources, &fetcher.SalesforceSource{
				Client:        sfClient,
				OpportunityID: ingestOpportunity,
			})
		}
		if len(sources) == 0 {
			return eris.New("nothing to ingest: pass file paths, --url, or --salesforce-opportunity")
		}

		var docs []model.Document
		for _, src := range sources {
			fetched, err := src.Fetch(ctx, ingestDeal)
			if err != nil {
				return err
			}
			docs = append(docs, fetched...)
		}

		overrides, err := parseTypeOverrides(ingestTypes)
		if err != nil {
			return err
		}

		result, err := env.Pipeline.ProcessBatch(ctx, ingestDeal, docs, pipeline.Options{
			Force:         ingestForce,
			TypeOverrides: overrides,
		})
		if err != nil {
			return err
		}

		if ingestJSON {
			return json.NewEncoder(os.Stdout).Encode(result)
		}
		printResult(cmd, result)
		return nil
	},
}

func printResult(cmd *cobra.Command, result *pipeline.Result) {
	for _, n := range result.Notices {
		cmd.Println("note: " + n)
	}
	for _, id := range result.Skipped {
		cmd.Println("skipped (already processed): " + id)
	}
	if result.Envelope == nil {
		cmd.Println("no documents processed")
		return
	}
	env := result.Envelope
	cmd.Printf("deal %s: %d document(s), %d fact(s), %d field(s)\n",
		env.DealID, len(env.DocumentsProcessed), env.FactCount(), len(env.FieldUpdates))
	for _, b := range env.SummaryBullets {
		cmd.Println("  - " + b)
	}
}

// parseTypeOverrides parses repeated "document=type" flags.
func parseTypeOverrides(pairs []string) (map[string]model.DocType, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]model.DocType, len(pairs))
	for _, pair := range pairs {
		docID, typeName, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, eris.Errorf("invalid --type %q, want document=type", pair)
		}
		dt, ok := model.ParseDocType(typeName)
		if !ok {
			return nil, eris.Errorf("unknown document type %q", typeName)
		}
		out[docID] = dt
	}
	zap.L().Debug("type overrides parsed", zap.Int("count", len(out)))
	return out, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDeal, "deal", "", "deal ID (required)")
	ingestCmd.Flags().StringArrayVar(&ingestURLs, "url", nil, "document URL to fetch (repeatable)")
	ingestCmd.Flags().StringVar(&ingestOpportunity, "salesforce-opportunity", "", "Salesforce opportunity ID to ingest as a CRM export")
	ingestCmd.Flags().StringArrayVar(&ingestTypes, "type", nil, "per-document type override, document=type (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "reprocess documents even when content is unchanged")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the full result as JSON")
	_ = ingestCmd.MarkFlagRequired("deal")
	rootCmd.AddCommand(ingestCmd)
}
