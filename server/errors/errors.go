// Copyright 2026 The etcd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import "errors"

var (
	ErrWriteConflict                 = errors.New("oplogapply: write conflict")
	ErrWriteConflictRetriesExhausted = errors.New("oplogapply: write conflict retries exhausted")
	ErrNamespaceNotFound             = errors.New("oplogapply: namespace not found")
	ErrNamespaceExists               = errors.New("oplogapply: namespace already exists")
	ErrUpdateOperationFailed         = errors.New("oplogapply: update target document not found")
	ErrUnsupportedCommand            = errors.New("oplogapply: unsupported command")
	ErrDocumentValidation            = errors.New("oplogapply: document failed validation")
	ErrBadOplogEntry                 = errors.New("oplogapply: malformed oplog entry")
	ErrSplitSessionCount             = errors.New("oplogapply: split session count mismatch")
	ErrSessionAlreadySplit           = errors.New("oplogapply: session already split")
	ErrSessionNotSplit               = errors.New("oplogapply: session not split")
)

// IsWriteConflict reports whether err should be retried by the write conflict loop.
func IsWriteConflict(err error) bool {
	return errors.Is(err, ErrWriteConflict)
}

func IsNamespaceNotFound(err error) bool {
	return errors.Is(err, ErrNamespaceNotFound)
}

func IsUpdateOperationFailed(err error) bool {
	return errors.Is(err, ErrUpdateOperationFailed)
}

func IsNamespaceExists(err error) bool {
	return errors.Is(err, ErrNamespaceExists)
}

func IsSessionNotSplit(err error) bool {
	return errors.Is(err, ErrSessionNotSplit)
}
