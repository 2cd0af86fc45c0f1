package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/ledger"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// descriptionJoiner separates descriptions of merged transactions.
const descriptionJoiner = " + "

// Merge moves every entry of target into source, reconciles descriptions and
// notes, recomputes source's balance and deletes target, all in one unit of
// work. The two transactions must carry imbalances in opposite directions.
func (e *Engine) Merge(ctx context.Context, sourceID, targetID string) (*model.Transaction, error) {
	var merged *model.Transaction
	err := e.storage.WithTx(ctx, func(store service.Store) error {
		source, err := store.GetTransaction(ctx, sourceID)
		if err != nil {
			return err
		}
		target, err := store.GetTransaction(ctx, targetID)
		if err != nil {
			return err
		}
		merged, err = e.mergeIn(ctx, store, source, target)
		return err
	})
	if err != nil {
		err = classify("merge", err)
		if common.KindOf(err) == common.KindInternal {
			common.LogError(ctx, err, "Failed to merge transactions", common.Fields{
				"source_id": sourceID,
				"target_id": targetID,
			})
		}
		return nil, err
	}
	return merged, nil
}

// CheckMergeable validates the merge preconditions without touching storage.
func CheckMergeable(source, target *model.Transaction) error {
	if source.ID == target.ID {
		return common.Validationf("cannot merge transaction %q into itself", source.ID)
	}
	sourceBalance := ledger.Evaluate(source.Entries)
	targetBalance := ledger.Evaluate(target.Entries)
	if sourceBalance.IsBalanced && targetBalance.IsBalanced {
		return common.Validationf("both transactions are already balanced")
	}
	sourceDir, targetDir := sourceBalance.Direction(), targetBalance.Direction()
	if sourceDir == "" || targetDir == "" || sourceDir == targetDir {
		return common.Validationf("opposite types required")
	}
	return nil
}

// mergeIn performs the merge through store, which must be inside a unit of work.
func (e *Engine) mergeIn(ctx context.Context, store service.Store, source, target *model.Transaction) (*model.Transaction, error) {
	if err := CheckMergeable(source, target); err != nil {
		return nil, err
	}

	ids := make([]string, len(target.Entries))
	for i, entry := range target.Entries {
		ids[i] = entry.ID
	}
	if err := store.MoveEntries(ctx, ids, source.ID); err != nil {
		return nil, fmt.Errorf("failed to move entries: %w", err)
	}

	merged, err := store.GetTransaction(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	merged.Description = joinDescriptions(source.Description, target.Description)
	merged.Notes = joinNotes(source.Notes, target.Notes, e.config.NotesSeparator)
	if err := store.SaveTransaction(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to save merged transaction: %w", err)
	}
	if err := store.DeleteTransaction(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("failed to delete merged transaction: %w", err)
	}

	slog.Info("Merged transactions",
		"source_id", source.ID,
		"target_id", target.ID,
		"entries", len(merged.Entries),
		"balanced", merged.IsBalanced)
	return merged, nil
}

func joinDescriptions(a, b string) string {
	switch {
	case a == b, b == "":
		return a
	case a == "":
		return b
	default:
		return a + descriptionJoiner + b
	}
}

func joinNotes(a, b, sep string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + sep + b
	}
}

// MoveResult reports both sides of a single-entry move. Source is nil when
// moving its last entry deleted it.
type MoveResult struct {
	Source        *model.Transaction `json:"source,omitempty"`
	Destination   *model.Transaction `json:"destination"`
	SourceDeleted bool               `json:"source_deleted"`
}

// MoveEntry reassigns one entry to another transaction and recomputes the
// balance of both. A source left without entries is deleted.
func (e *Engine) MoveEntry(ctx context.Context, entryID, destinationID string) (*MoveResult, error) {
	var result *MoveResult
	err := e.storage.WithTx(ctx, func(store service.Store) error {
		entry, err := store.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.TransactionID == destinationID {
			return common.Validationf("entry %q already belongs to transaction %q", entryID, destinationID)
		}
		if _, err := store.GetTransaction(ctx, destinationID); err != nil {
			return err
		}

		if err := store.MoveEntries(ctx, []string{entryID}, destinationID); err != nil {
			return fmt.Errorf("failed to move entry: %w", err)
		}

		result = &MoveResult{}
		source, err := store.GetTransaction(ctx, entry.TransactionID)
		if err != nil {
			return err
		}
		if len(source.Entries) == 0 {
			if err := store.DeleteTransaction(ctx, source.ID); err != nil {
				return fmt.Errorf("failed to delete emptied transaction: %w", err)
			}
			result.SourceDeleted = true
		} else {
			if err := store.SaveTransaction(ctx, source); err != nil {
				return fmt.Errorf("failed to save source transaction: %w", err)
			}
			result.Source = source
		}

		destination, err := store.GetTransaction(ctx, destinationID)
		if err != nil {
			return err
		}
		if err := store.SaveTransaction(ctx, destination); err != nil {
			return fmt.Errorf("failed to save destination transaction: %w", err)
		}
		result.Destination = destination
		return nil
	})
	if err != nil {
		err = classify("move entry", err)
		if common.KindOf(err) == common.KindInternal {
			common.LogError(ctx, err, "Failed to move entry", common.Fields{
				"entry_id":       entryID,
				"destination_id": destinationID,
			})
		}
		return nil, err
	}
	return result, nil
}
