package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func reconcileCmd() *cobra.Command {
	var paymentID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fetch a payment from MONEI and apply it to its order",
		Example: `  reconciler reconcile --payment-id 3690bd3f58ee31a6b2f7e5fd3d5a3ab3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if paymentID == "" {
				return errors.New("--payment-id is required")
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			pool, err := connect(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := buildServices(pool, cfg, logger)
			p, err := svc.payments.GetFresh(ctx, paymentID)
			if err != nil {
				return fmt.Errorf("fetch payment %s: %w", paymentID, err)
			}
			if !svc.reconciler.Processor().WaitForPaymentUnlock(ctx, p.OrderID, p.ID) {
				logger.Warn("payment still locked, reconciling anyway", zap.String("payment_id", p.ID))
			}

			res, err := svc.reconciler.Reconcile(ctx, p)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"payment_id":   res.PaymentID,
				"order_id":     res.OrderID,
				"status":       res.Status,
				"outcome":      res.Outcome,
				"reason":       res.Reason,
				"order_state":  res.OrderState,
				"order_status": res.OrderStatus,
				"invoice_id":   res.InvoiceID,
				"email_sent":   res.EmailSent,
			})
		},
	}
	cmd.Flags().StringVar(&paymentID, "payment-id", "", "MONEI payment id")
	return cmd
}
