package main

import (
	"context"
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/scoring"
	"github.com/sells-group/assessment/internal/store"
)

var (
	rescoreConversationID string
	rescoreUserID         string
	rescoreSave           bool
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Score a stored conversation locally",
	Long:  "Reloads a conversation's exchanges from the store and scores them with local fallback scoring. The result depends only on the stored answers, so repeated runs agree.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "rescore", prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := rescore(ctx, env.Store, env.Scorer.Dimensions(), rescoreConversationID)
		if err != nil {
			return err
		}

		if rescoreSave {
			if err := env.Store.SaveEvaluation(ctx, rescoreUserID, rescoreConversationID, res); err != nil {
				return eris.Wrap(err, "save evaluation")
			}
			zap.L().Info("rescore: evaluation saved",
				zap.String("conversation_id", rescoreConversationID),
				zap.Float64("average_score", res.AverageScore),
			)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// rescore loads the exchanges of conversationID and scores them with the
// standalone preset.
func rescore(ctx context.Context, st store.Store, dims []model.Dimension, conversationID string) (model.EvaluationResult, error) {
	recs, err := st.ListExchanges(ctx, conversationID)
	if err != nil {
		return model.EvaluationResult{}, eris.Wrapf(err, "list exchanges for %s", conversationID)
	}
	if len(recs) == 0 {
		return model.EvaluationResult{}, eris.Wrapf(model.ErrNotFound, "conversation %s has no exchanges", conversationID)
	}
	exchanges := make([]model.Exchange, len(recs))
	for i, r := range recs {
		exchanges[i] = r.Exchange()
	}
	return scoring.Local(dims, scoring.InputFrom(exchanges), scoring.StandalonePreset), nil
}

func init() {
	rescoreCmd.Flags().StringVar(&rescoreConversationID, "conversation-id", "", "conversation to rescore")
	rescoreCmd.Flags().StringVar(&rescoreUserID, "user-id", "", "user id recorded with the saved evaluation")
	rescoreCmd.Flags().BoolVar(&rescoreSave, "save", false, "store the result as the conversation's evaluation")
	_ = rescoreCmd.MarkFlagRequired("conversation-id")
	rootCmd.AddCommand(rescoreCmd)
}
