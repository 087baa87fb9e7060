package ecs

// EntityID packs a 24-bit slot index in the low bits and an 8-bit generation
// in the high bits. It is also the entity's wire identity, so zero is never
// handed out.
type EntityID uint32

const (
	indexBits  = 24
	indexMask  = 1<<indexBits - 1
	maxEntites = indexMask
)

func NewEntityID(index uint32, generation uint8) EntityID {
	return EntityID(uint32(generation)<<indexBits | index&indexMask)
}

func (id EntityID) Index() uint32     { return uint32(id) & indexMask }
func (id EntityID) Generation() uint8 { return uint8(uint32(id) >> indexBits) }
func (id EntityID) IsZero() bool      { return id == 0 }

// EntityPool manages entity allocation with generational indices. Freed
// slots are reused oldest-first so an identifier a peer may still hold in
// its baseline stays unique for as long as possible.
type EntityPool struct {
	generations []uint8
	live        []bool
	freeList    []uint32
	freeHead    int
	nextIndex   uint32
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint8, 1, 1024),
		live:        make([]bool, 1, 1024),
		freeList:    make([]uint32, 0, 256),
		nextIndex:   1, // slot 0 is reserved so EntityID 0 means "none"
	}
}

func (p *EntityPool) Create() EntityID {
	if p.freeHead < len(p.freeList) {
		idx := p.freeList[p.freeHead]
		p.freeHead++
		if p.freeHead == len(p.freeList) {
			p.freeList = p.freeList[:0]
			p.freeHead = 0
		}
		p.live[idx] = true
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	if idx > maxEntites {
		panic("ecs: entity index space exhausted")
	}
	p.nextIndex++
	p.generations = append(p.generations, 0)
	p.live = append(p.live, true)
	return NewEntityID(idx, p.generations[idx])
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx == 0 || idx >= p.nextIndex {
		return false
	}
	return p.live[idx] && p.generations[idx] == id.Generation()
}

func (p *EntityPool) Destroy(id EntityID) {
	idx := id.Index()
	if idx == 0 || idx >= p.nextIndex {
		return
	}
	if !p.live[idx] || p.generations[idx] != id.Generation() {
		return // already destroyed (stale reference)
	}
	p.live[idx] = false
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
}
