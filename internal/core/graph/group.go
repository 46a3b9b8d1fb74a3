package graph

// GroupColor is one of the fixed group palette entries.
type GroupColor string

const (
	GroupColorNeutral GroupColor = "neutral"
	GroupColorBlue    GroupColor = "blue"
	GroupColorGreen   GroupColor = "green"
	GroupColorPurple  GroupColor = "purple"
	GroupColorOrange  GroupColor = "orange"
	GroupColorRed     GroupColor = "red"
)

// GroupColors is the assignment rotation for new groups.
var GroupColors = []GroupColor{
	GroupColorNeutral,
	GroupColorBlue,
	GroupColorGreen,
	GroupColorPurple,
	GroupColorOrange,
	GroupColorRed,
}

// Valid reports whether c belongs to the palette.
func (c GroupColor) Valid() bool {
	for _, known := range GroupColors {
		if c == known {
			return true
		}
	}
	return false
}

// Group layout constants.
const (
	GroupPadding      = 20.0
	GroupHeaderHeight = 32.0
)

// Group is a visual container. Members point at it through Node.GroupID.
type Group struct {
	ID       string     `json:"id" validate:"required"`
	Name     string     `json:"name"`
	Color    GroupColor `json:"color" validate:"group_color"`
	Position Position   `json:"position"`
	Size     Size       `json:"size"`
}

// Clone returns a copy of the group.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// Bounds computes the group rectangle enclosing the given nodes, padded and
// offset for the group header.
func Bounds(nodes []*Node) (Position, Size) {
	if len(nodes) == 0 {
		return Position{}, Size{}
	}
	minX, minY := nodes[0].Position.X, nodes[0].Position.Y
	maxX, maxY := minX, minY
	for _, n := range nodes {
		ext := n.Extent()
		minX = min(minX, n.Position.X)
		minY = min(minY, n.Position.Y)
		maxX = max(maxX, n.Position.X+ext.Width)
		maxY = max(maxY, n.Position.Y+ext.Height)
	}
	pos := Position{
		X: minX - GroupPadding,
		Y: minY - GroupPadding - GroupHeaderHeight,
	}
	size := Size{
		Width:  maxX - minX + 2*GroupPadding,
		Height: maxY - minY + 2*GroupPadding + GroupHeaderHeight,
	}
	return pos, size
}

// NextGroupColor picks the first palette color not used by any existing
// group, rotating through the palette once every color is taken.
func NextGroupColor(groups map[string]*Group) GroupColor {
	used := make(map[GroupColor]bool, len(groups))
	for _, g := range groups {
		used[g.Color] = true
	}
	for _, c := range GroupColors {
		if !used[c] {
			return c
		}
	}
	return GroupColors[len(groups)%len(GroupColors)]
}
