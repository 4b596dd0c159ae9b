package dto

// Test-only exports for internal functions.
var ErrNestedDepthExceeded = errNestedDepthExceeded

// CreateTransferType classifies fd as a top-level field found at depth.
func (b *Backend) CreateTransferType(fd *FieldDefinition, depth int) (TransferType, error) {
	return b.createTransferType(fd, filter{}, fd.Name(), depth)
}
