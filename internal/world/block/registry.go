package block

import (
	"fmt"
	"sort"
	"strings"
)

// ID представляет идентификатор типа блока
type ID uint8

// Константы ID блоков
const (
	Air   ID = iota // 0 - пустота, в сцену не добавляется
	Grass           // 1
	Dirt            // 2
	Sand            // 3
	Stone           // 4
)

// Info описывает тип блока
type Info struct {
	ID    ID
	Name  string
	Solid bool
}

// registry заполняется один раз и далее только читается
var registry = map[ID]Info{
	Air:   {ID: Air, Name: "air"},
	Grass: {ID: Grass, Name: "grass", Solid: true},
	Dirt:  {ID: Dirt, Name: "dirt", Solid: true},
	Sand:  {ID: Sand, Name: "sand", Solid: true},
	Stone: {ID: Stone, Name: "stone", Solid: true},
}

// IsSolid возвращает true для блоков, которые занимают объём в мире
func (id ID) IsSolid() bool {
	return registry[id].Solid
}

func (id ID) String() string {
	if info, ok := registry[id]; ok {
		return info.Name
	}
	return fmt.Sprintf("block#%d", uint8(id))
}

// Parse находит ID по имени блока (без учёта регистра)
func Parse(name string) (ID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, info := range registry {
		if info.Name == name {
			return id, nil
		}
	}
	return Air, fmt.Errorf("неизвестный тип блока %q", name)
}

// Names возвращает имена всех зарегистрированных блоков в порядке ID
func Names() []string {
	ids := make([]int, 0, len(registry))
	for id := range registry {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, registry[ID(id)].Name)
	}
	return names
}
