package domain

import "errors"

// UploadResult is the backend's answer to a batched upload. Tabular is empty
// when none of the uploaded files needs a column decision.
type UploadResult struct {
	Tabular []TabularFile
}

// Answer is the backend's reply to a query.
type Answer struct {
	Message string
}

var (
	ErrSlotPending   = errors.New("every slot must hold a file before adding another")
	ErrLastSlot      = errors.New("the batch must keep at least one slot")
	ErrSlotRange     = errors.New("slot index out of range")
	ErrNoFile        = errors.New("no file chosen")
	ErrUnknownColumn = errors.New("unknown tabular file or column")
)
