package core

// IdentityFunc returns a fresh, unique identifier for a committed record.
type IdentityFunc func() string

// Pipeline runs the two record stages: validation and import.
// Both stages take ownership of nothing; the batch is copied, never mutated.
type Pipeline struct {
	validator *Validator
}

// NewPipeline creates a Pipeline around v.
func NewPipeline(v *Validator) *Pipeline {
	if v == nil {
		v = NewValidator()
	}
	return &Pipeline{validator: v}
}

// Validator returns the validator the pipeline runs.
func (p *Pipeline) Validator() *Validator {
	return p.validator
}

// Validate checks every record of batch. Records with no defects are copied
// into Successful in order; the rest are reported in Failed by 1-based row.
func (p *Pipeline) Validate(batch []User) ImportResult {
	result := ImportResult{
		Successful:     make([]User, 0, len(batch)),
		Failed:         make([]RowError, 0),
		TotalProcessed: len(batch),
	}

	for i, u := range batch {
		if defects := p.validator.Validate(u); len(defects) > 0 {
			result.Failed = append(result.Failed, RowError{Row: i + 1, Errors: defects})
			continue
		}
		result.Successful = append(result.Successful, u)
	}
	return result
}

// Import re-validates batch and, only if every record passes, assigns each an
// id from assign. A batch with any failure comes back exactly as Validate
// reports it and no ids are drawn.
func (p *Pipeline) Import(batch []User, assign IdentityFunc) ImportResult {
	result := p.Validate(batch)
	if !result.Clean() {
		return result
	}

	for i := range result.Successful {
		result.Successful[i].ID = assign()
	}
	return result
}
