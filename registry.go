/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package royalty

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/paysplit/royalty/model"
)

// IsUsable reports whether a payee entity can receive a royalty transfer.
func IsUsable(subject *model.Subject) bool {
	return subject != nil && subject.IsEnabled() && subject.RoyaltyEnabled()
}

// disableSubject switches a payee entity off after a structural provider error.
// Disabling an entity that is already off changes nothing, but the attempt is
// still written to the order log.
func (r *Royalty) disableSubject(ctx context.Context, subject *model.Subject, order *model.Order, code, reason string) (bool, error) {
	changed, err := r.datasource.DisableSubject(ctx, subject.SubjectID, reason)
	if err != nil {
		logrus.WithField("subject", subject.SubjectID).Errorf("failed to disable subject: %v", err)
		return false, err
	}
	if changed {
		subject.Status = model.SubjectStatusDisabled
		subject.DisabledReason = reason
		logrus.WithFields(logrus.Fields{"subject": subject.SubjectID, "code": code}).Warn("subject disabled after structural settlement error")
	}

	r.audit(ctx, order, model.LogLevelWarning, NodeSubjectAutoDisabled, map[string]interface{}{
		"subject_id": subject.SubjectID,
		"error_code": code,
		"reason":     reason,
		"changed":    changed,
	})
	return changed, nil
}
