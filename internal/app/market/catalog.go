package market

import (
	"context"
	"fmt"

	"github.com/distri-network/distri/internal/domain"
)

// ─── AI Model & Dataset Catalog ─────────────────────────────────────────────

// CreateAiModel publishes a model under its owner. The owner's statistics
// record is created alongside if missing.
func (e *Engine) CreateAiModel(ctx context.Context, owner domain.Pubkey, m domain.AiModel) error {
	return e.run(ctx, "create_ai_model", func(t *txn) error {
		if err := checkCatalogEntry(m.Name, m.Tags); err != nil {
			return err
		}
		m.Owner = owner
		m.CreateTime = t.now
		m.UpdateTime = t.now
		if err := t.Create(domain.AiModelKey(owner, m.Name), owner, m); err != nil {
			return fmt.Errorf("create ai model %q: %w", m.Name, err)
		}
		if _, err := statistics(t, owner); err != nil {
			return err
		}
		t.emit(domain.AiModelEvent{Action: domain.ActionCreate, Owner: owner, Name: m.Name})
		return nil
	})
}

// RemoveAiModel deletes one of the owner's models.
func (e *Engine) RemoveAiModel(ctx context.Context, owner domain.Pubkey, name string) error {
	return e.run(ctx, "remove_ai_model", func(t *txn) error {
		var m domain.AiModel
		key := domain.AiModelKey(owner, name)
		if err := t.Get(key, &m); err != nil {
			return fmt.Errorf("ai model %q: %w", name, err)
		}
		if _, err := t.Delete(key, owner); err != nil {
			return fmt.Errorf("remove ai model %q: %w", name, err)
		}
		t.emit(domain.AiModelEvent{Action: domain.ActionRemove, Owner: owner, Name: m.Name})
		return nil
	})
}

// CreateDataset publishes a dataset under its owner.
func (e *Engine) CreateDataset(ctx context.Context, owner domain.Pubkey, d domain.Dataset) error {
	return e.run(ctx, "create_dataset", func(t *txn) error {
		if err := checkCatalogEntry(d.Name, d.Tags); err != nil {
			return err
		}
		d.Owner = owner
		d.CreateTime = t.now
		d.UpdateTime = t.now
		if err := t.Create(domain.DatasetKey(owner, d.Name), owner, d); err != nil {
			return fmt.Errorf("create dataset %q: %w", d.Name, err)
		}
		if _, err := statistics(t, owner); err != nil {
			return err
		}
		t.emit(domain.DatasetEvent{Action: domain.ActionCreate, Owner: owner, Name: d.Name})
		return nil
	})
}

// RemoveDataset deletes one of the owner's datasets.
func (e *Engine) RemoveDataset(ctx context.Context, owner domain.Pubkey, name string) error {
	return e.run(ctx, "remove_dataset", func(t *txn) error {
		var d domain.Dataset
		key := domain.DatasetKey(owner, name)
		if err := t.Get(key, &d); err != nil {
			return fmt.Errorf("dataset %q: %w", name, err)
		}
		if _, err := t.Delete(key, owner); err != nil {
			return fmt.Errorf("remove dataset %q: %w", name, err)
		}
		t.emit(domain.DatasetEvent{Action: domain.ActionRemove, Owner: owner, Name: d.Name})
		return nil
	})
}

func checkCatalogEntry(name, tags string) error {
	if err := checkLength("name", name, domain.NameMaxLength); err != nil {
		return err
	}
	return checkLength("tags", tags, domain.TagsMaxLength)
}
