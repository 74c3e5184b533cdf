package wire

// Resource identifiers. Zero is None for every resource.
type (
	Window   uint32
	Pixmap   uint32
	Cursor   uint32
	Font     uint32
	Colormap uint32
	Atom     uint32
)

func (Window) Sentinel() Window     { return 0 }
func (Pixmap) Sentinel() Pixmap     { return 0 }
func (Cursor) Sentinel() Cursor     { return 0 }
func (Font) Sentinel() Font         { return 0 }
func (Colormap) Sentinel() Colormap { return 0 }

// Atom zero doubles as AnyPropertyType.
func (Atom) Sentinel() Atom { return 0 }

// Timestamp is server time in milliseconds. Zero is CurrentTime.
type Timestamp uint32

func (Timestamp) Sentinel() Timestamp { return 0 }

// Keycode zero is AnyKey.
type Keycode uint8

func (Keycode) Sentinel() Keycode { return 0 }

// Button zero is AnyButton.
type Button uint8

func (Button) Sentinel() Button { return 0 }

// Opcode is a major opcode, event code or error code. Zero means none.
type Opcode uint8

func (Opcode) Sentinel() Opcode { return 0 }
