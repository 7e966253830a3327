package cloud

import "errors"

// ErrArchive is returned by a migration whose ledger backup failed. Nothing
// is removed from the ledger in that case.
var ErrArchive = errors.New("ledger archive failed")
