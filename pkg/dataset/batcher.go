// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// Batcher yields training batches from a labeled DataSet, using DataSet.NextBatch.
// It never ends, so it should be used with train.Loop.RunSteps.
//
// Peek gives access to the batch that will be yielded next, before it is trained on.
// The Batcher keeps ownership of the tensors it yields: the previous batch is freed when
// the next one is yielded.
type Batcher struct {
	ds        *DataSet
	batchSize int

	mu                           sync.Mutex
	pendingImages, pendingLabels *tensors.Tensor
	lastImages, lastLabels       *tensors.Tensor
}

var (
	_ train.Dataset                = (*Batcher)(nil)
	_ train.DatasetCustomOwnership = (*Batcher)(nil)
)

// NewBatcher creates a Batcher over ds. ds must be labeled and have at least batchSize examples.
func NewBatcher(ds *DataSet, batchSize int) (*Batcher, error) {
	if !ds.Labeled() {
		return nil, errors.Errorf("dataset %q has no labels, it cannot be used for training", ds.Name)
	}
	if batchSize <= 0 || batchSize > ds.Len() {
		return nil, errors.Errorf("batch size %d invalid for dataset %q with %d examples", batchSize, ds.Name, ds.Len())
	}
	return &Batcher{ds: ds, batchSize: batchSize}, nil
}

// Name implements train.Dataset.
func (b *Batcher) Name() string { return b.ds.Name }

// ShortName implements train.HasShortName.
func (b *Batcher) ShortName() string { return "Batch" }

// BatchSize returns the number of examples per batch.
func (b *Batcher) BatchSize() int { return b.batchSize }

// Reset implements train.Dataset. Batches continue from where they were, since the stream is infinite.
func (b *Batcher) Reset() {}

// Peek returns the batch that the next call to Yield will return.
// The tensors remain owned by the Batcher.
func (b *Batcher) Peek() (images, labels *tensors.Tensor, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pendingImages == nil {
		b.pendingImages, b.pendingLabels, err = b.ds.NextBatch(b.batchSize)
		if err != nil {
			return nil, nil, err
		}
	}
	return b.pendingImages, b.pendingLabels, nil
}

// Yield implements train.Dataset.
func (b *Batcher) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	images, batchLabels := b.pendingImages, b.pendingLabels
	b.pendingImages, b.pendingLabels = nil, nil
	if images == nil {
		images, batchLabels, err = b.ds.NextBatch(b.batchSize)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	freeTensors(b.lastImages, b.lastLabels)
	b.lastImages, b.lastLabels = images, batchLabels
	return nil, []*tensors.Tensor{images}, []*tensors.Tensor{batchLabels}, nil
}

// IsOwnershipTransferred implements train.DatasetCustomOwnership.
func (b *Batcher) IsOwnershipTransferred() bool { return false }

// Finalize frees the last yielded batch and the pending one, if any.
func (b *Batcher) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	freeTensors(b.lastImages, b.lastLabels, b.pendingImages, b.pendingLabels)
	b.lastImages, b.lastLabels = nil, nil
	b.pendingImages, b.pendingLabels = nil, nil
}

func freeTensors(ts ...*tensors.Tensor) {
	for _, t := range ts {
		if t != nil {
			_ = t.FinalizeAll()
		}
	}
}
