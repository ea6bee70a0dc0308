package trace

// PushChange exposes pushChange to the external test package.
func (r *Recorder) PushChange(inst, sig, elem int) { r.pushChange(inst, sig, elem) }
