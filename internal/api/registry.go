package api

import (
	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/service"
)

// SceneInfo contains information about a scene for the API response.
type SceneInfo struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Palette string          `json:"palette"`
	Params  animator.Params `json:"params"`
}

// SceneRegistry holds scene and embedding services for all configured entries.
type SceneRegistry struct {
	services       map[string]*service.SceneService
	embeddings     map[string]*service.EmbeddingService
	defaultScene   string
	sceneOrder     []string
	embeddingOrder []string
	title          string
}

// NewSceneRegistry creates a new scene registry.
func NewSceneRegistry(defaultScene string, order []string, title string) *SceneRegistry {
	return &SceneRegistry{
		services:     make(map[string]*service.SceneService),
		embeddings:   make(map[string]*service.EmbeddingService),
		defaultScene: defaultScene,
		sceneOrder:   order,
		title:        title,
	}
}

// Register adds a scene service.
func (r *SceneRegistry) Register(sceneID string, svc *service.SceneService) {
	r.services[sceneID] = svc
}

// RegisterEmbedding adds an embedding service, keeping registration order.
func (r *SceneRegistry) RegisterEmbedding(id string, svc *service.EmbeddingService) {
	if _, ok := r.embeddings[id]; !ok {
		r.embeddingOrder = append(r.embeddingOrder, id)
	}
	r.embeddings[id] = svc
}

// Get returns the scene service for a scene, or nil if not found.
func (r *SceneRegistry) Get(sceneID string) *service.SceneService {
	return r.services[sceneID]
}

// Embedding returns the embedding service, or nil if not found.
func (r *SceneRegistry) Embedding(id string) *service.EmbeddingService {
	return r.embeddings[id]
}

// Default returns the default scene's service.
func (r *SceneRegistry) Default() *service.SceneService {
	return r.services[r.defaultScene]
}

// DefaultSceneID returns the default scene ID.
func (r *SceneRegistry) DefaultSceneID() string {
	return r.defaultScene
}

// SceneIDs returns all scene IDs in config order.
func (r *SceneRegistry) SceneIDs() []string {
	return r.sceneOrder
}

// EmbeddingIDs returns all embedding IDs in registration order.
func (r *SceneRegistry) EmbeddingIDs() []string {
	return r.embeddingOrder
}

// Title returns the configured site title.
func (r *SceneRegistry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "orbitscene"
}

// Scenes returns scene info for all registered scenes.
func (r *SceneRegistry) Scenes() []SceneInfo {
	infos := make([]SceneInfo, 0, len(r.sceneOrder))
	for _, id := range r.sceneOrder {
		svc := r.services[id]
		if svc == nil {
			continue
		}
		infos = append(infos, SceneInfo{
			ID:      id,
			Name:    id,
			Palette: svc.Palette(),
			Params:  svc.Params(),
		})
	}
	return infos
}
