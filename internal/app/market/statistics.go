package market

import (
	"context"
	"fmt"

	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/infra/metrics"
)

// ReportAiModelDatasetReward credits owner with a claimable AI
// model/dataset reward. Only configured admins may report.
func (e *Engine) ReportAiModelDatasetReward(ctx context.Context, admin, owner domain.Pubkey, amount uint64) error {
	return e.run(ctx, "report_ai_model_dataset_reward", func(t *txn) error {
		if !e.admins[admin] {
			return fmt.Errorf("report reward by %s: %w", admin, domain.ErrUnauthorized)
		}
		s, err := statistics(t, owner)
		if err != nil {
			return err
		}
		if s.AiModelDatasetRewardClaimable, err = e.overflow.Add(s.AiModelDatasetRewardClaimable, amount); err != nil {
			return fmt.Errorf("claimable reward: %w", err)
		}
		if err := t.Put(domain.StatisticsKey(owner), s); err != nil {
			return err
		}
		t.emit(domain.StatisticsEvent{Action: domain.ActionReport, Owner: owner, Amount: amount})
		return nil
	})
}

// ClaimAiModelDatasetReward pays out the owner's whole claimable AI
// model/dataset reward from the reward pool.
func (e *Engine) ClaimAiModelDatasetReward(ctx context.Context, owner domain.Pubkey) (uint64, error) {
	var paid uint64
	err := e.run(ctx, "claim_ai_model_dataset_reward", func(t *txn) error {
		var s domain.Statistics
		if err := t.Get(domain.StatisticsKey(owner), &s); err != nil {
			return fmt.Errorf("statistics of %s: %w", owner, err)
		}
		amount := s.AiModelDatasetRewardClaimable
		if amount == 0 {
			return fmt.Errorf("nothing to claim for %s: %w", owner, domain.ErrIncorrectStatus)
		}

		claimed, err := e.overflow.Add(s.AiModelDatasetRewardClaimed, amount)
		if err != nil {
			return fmt.Errorf("claimed reward: %w", err)
		}
		s.AiModelDatasetRewardClaimed = claimed
		s.AiModelDatasetRewardClaimable = 0

		if err := e.release(t, e.rewardPool, owner, amount, "claim"); err != nil {
			return err
		}
		if err := t.Put(domain.StatisticsKey(owner), s); err != nil {
			return err
		}

		t.afterCommit = append(t.afterCommit, metrics.RewardsClaimed.WithLabelValues("ai_model_dataset").Inc)
		t.emit(domain.StatisticsEvent{Action: domain.ActionClaim, Owner: owner, Amount: amount})
		paid = amount
		return nil
	})
	return paid, err
}
