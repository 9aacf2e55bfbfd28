package uart

// Port binds a Table and a Handle.
type Port struct {
	table  *Table
	handle Handle
}

// OpenPort opens dev on t and wraps the handle.
func OpenPort(t *Table, dev int, baud uint32) (*Port, error) {
	h, err := t.Open(dev, baud)
	if err != nil {
		return nil, err
	}
	return NewPort(t, h), nil
}

// NewPort wraps an existing handle of t.
func NewPort(t *Table, h Handle) *Port {
	return &Port{table: t, handle: h}
}

// Handle returns the table handle.
func (p *Port) Handle() Handle {
	return p.handle
}

// BufferSize returns the minimum destination size of Read.
func (p *Port) BufferSize() int {
	return p.table.BufferSize()
}

// Read is Table.Read on the port.
func (p *Port) Read(dst []byte) (int, error) {
	return p.table.Read(p.handle, dst)
}

// Write is Table.Write on the port.
func (p *Port) Write(src []byte) (int, error) {
	return p.table.Write(p.handle, src)
}

// Status is Table.Status on the port.
func (p *Port) Status() (PortStatus, error) {
	return p.table.Status(p.handle)
}

// Close implements io.Closer.
func (p *Port) Close() error {
	return p.table.Close(p.handle)
}
