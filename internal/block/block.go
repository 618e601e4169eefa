package block

// Type identifies a voxel's material. Air is always 0.
type Type uint8

const (
	Air Type = iota
	Bedrock
	Stone
	Dirt
	Grass
	Sand
	Water
	Asphalt
	RoadMarking
	Curb
	CigaretteFilter
	CigaretteBody
	Ember
	Smoke
	PipeBowl
	PipeStem
	PipeTube
	PipeMouthpiece
	Glass
	Concrete

	// Count is the number of block types.
	Count
)

// Info describes how a block type behaves for collision, culling and rendering.
type Info struct {
	Name string
	// Passable blocks can be occupied by entities.
	Passable bool
	// Transparent blocks never hide the face of an adjacent block.
	Transparent bool
	// DoubleSided blocks are rendered without back-face culling.
	DoubleSided bool
}

var catalog = [Count]Info{
	Air:             {Name: "air", Passable: true, Transparent: true},
	Bedrock:         {Name: "bedrock"},
	Stone:           {Name: "stone"},
	Dirt:            {Name: "dirt"},
	Grass:           {Name: "grass"},
	Sand:            {Name: "sand"},
	Water:           {Name: "water", Passable: true, Transparent: true},
	Asphalt:         {Name: "asphalt"},
	RoadMarking:     {Name: "road_marking"},
	Curb:            {Name: "curb"},
	CigaretteFilter: {Name: "cigarette_filter"},
	CigaretteBody:   {Name: "cigarette_body"},
	Ember:           {Name: "ember"},
	Smoke:           {Name: "smoke", Passable: true, Transparent: true, DoubleSided: true},
	PipeBowl:        {Name: "pipe_bowl"},
	PipeStem:        {Name: "pipe_stem"},
	PipeTube:        {Name: "pipe_tube"},
	PipeMouthpiece:  {Name: "pipe_mouthpiece"},
	Glass:           {Name: "glass", Transparent: true, DoubleSided: true},
	Concrete:        {Name: "concrete"},
}

var byName = func() map[string]Type {
	m := make(map[string]Type, Count)
	for i, info := range catalog {
		m[info.Name] = Type(i)
	}
	return m
}()

// Valid reports whether t is a member of the catalog.
func (t Type) Valid() bool { return t < Count }

// Info returns the catalog entry for t. Unknown ids are solid and opaque.
func (t Type) Info() Info {
	if !t.Valid() {
		return Info{Name: "unknown"}
	}
	return catalog[t]
}

func (t Type) String() string    { return t.Info().Name }
func (t Type) Passable() bool    { return t.Info().Passable }
func (t Type) Transparent() bool { return t.Info().Transparent }
func (t Type) DoubleSided() bool { return t.Info().DoubleSided }

// Fluid reports whether t is a see-through liquid for targeting purposes.
func (t Type) Fluid() bool { return t == Water }

// ByName looks up a block type by its catalog name.
func ByName(name string) (Type, bool) {
	t, ok := byName[name]
	return t, ok
}

// All returns every block type in id order.
func All() []Type {
	out := make([]Type, Count)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}
