package partition

import (
	"fmt"

	"github.com/danmuck/treesync/internal/meta"
	"github.com/danmuck/treesync/internal/notification"
	"github.com/danmuck/treesync/internal/tree"
)

// SetProperty sets property feat of n. A nil v deletes the property; an
// unchanged value raises nothing.
func (f *Forest) SetProperty(n *tree.Node, feat *meta.Feature, v any) error {
	if v == nil {
		return f.DeleteProperty(n, feat)
	}
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.referenceOwner(c, n); err != nil {
			return nil, err
		}
		old, had := n.Property(feat)
		if had && tree.SameValue(old, v) {
			return nil, nil
		}
		if err := n.SetPropertyRaw(feat, v); err != nil {
			return nil, err
		}
		if had {
			return notification.PropertyChanged{Node: n, Property: feat, NewValue: v, OldValue: old}, nil
		}
		return notification.PropertyAdded{Node: n, Property: feat, NewValue: v}, nil
	})
}

// DeleteProperty removes property feat of n if set.
func (f *Forest) DeleteProperty(n *tree.Node, feat *meta.Feature) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.referenceOwner(c, n); err != nil {
			return nil, err
		}
		old, had := n.Property(feat)
		if !had {
			return nil, nil
		}
		if err := n.SetPropertyRaw(feat, nil); err != nil {
			return nil, err
		}
		return notification.PropertyDeleted{Node: n, Property: feat, OldValue: old}, nil
	})
}

// ChangeClassifier swaps n's classifier.
func (f *Forest) ChangeClassifier(n *tree.Node, cls *meta.Classifier) error {
	return f.edit(func(c *composition) (notification.Notification, error) {
		if err := f.referenceOwner(c, n); err != nil {
			return nil, err
		}
		if cls == nil {
			return nil, fmt.Errorf("%w: nil classifier", meta.ErrUnknownPointer)
		}
		old := n.Classifier()
		if old == cls {
			return nil, nil
		}
		n.SetClassifierRaw(cls)
		return notification.ClassifierChanged{Node: n, NewClassifier: cls, OldClassifier: old}, nil
	})
}
