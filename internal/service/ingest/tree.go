package ingest

import (
	"context"
	"log/slog"
	"sort"

	models "assetdrop/internal/domain/models/ingest"
	ingestRepo "assetdrop/internal/domain/repositories/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// assetTreeService implements the AssetTreeService interface
type assetTreeService struct {
	assets   ingestRepo.AssetRepository
	projects ingestRepo.ProjectRepository
	logger   *slog.Logger
}

// NewAssetTreeService creates a new asset tree service
func NewAssetTreeService(
	assets ingestRepo.AssetRepository,
	projects ingestRepo.ProjectRepository,
	logger *slog.Logger,
) ingestSvc.AssetTreeService {
	return &assetTreeService{
		assets:   assets,
		projects: projects,
		logger:   logger,
	}
}

// GetAssetTree nests a project's records under their parents.
// Siblings are sorted by position.
func (s *assetTreeService) GetAssetTree(ctx context.Context, userID, projectID string) (*models.AssetTree, error) {
	if _, err := s.projects.GetByID(ctx, projectID, userID); err != nil {
		return nil, err
	}

	records, err := s.assets.GetRecords(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// First pass: one tree node per record
	nodes := make(map[models.FinalID]*models.AssetTreeNode, len(records))
	for _, rec := range records {
		nodes[rec.ID] = &models.AssetTreeNode{
			AssetRecord: rec,
			Children:    []*models.AssetTreeNode{},
		}
	}

	// Second pass: attach children to parents
	roots := make([]*models.AssetTreeNode, 0)
	orphans := 0
	for _, rec := range records {
		node := nodes[rec.ID]
		if rec.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*rec.ParentID]
		if !ok {
			orphans++
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	// Third pass: order siblings
	sortByPosition(roots)
	for _, node := range nodes {
		sortByPosition(node.Children)
	}

	if orphans > 0 {
		s.logger.Warn("asset records with missing parents", "project_id", projectID, "count", orphans)
	}
	s.logger.Debug("asset tree built",
		"project_id", projectID,
		"record_count", len(records),
	)

	return &models.AssetTree{Roots: roots}, nil
}

func sortByPosition(nodes []*models.AssetTreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Position < nodes[j].Position
	})
}
