package push

import (
	"context"
	"log"
	"slices"

	"github.com/nao1215/chatpush/internal/registry"
)

// resolveRecipients は通知対象のユーザーID一覧を解決する。
// ビジネスのオーナーと、チャット権限を持つ従業員が対象になる。
// 個々の参照に失敗してもログに記録して処理を継続し、解決できた分だけ返す。
func (s *Server) resolveRecipients(ctx context.Context, business *registry.Business) []string {
	var userIDs []string

	if business.OwnerEmail != "" {
		ownerID, err := s.registry.FindUserIDByEmail(ctx, business.OwnerEmail)
		if err != nil {
			log.Printf("[Push] オーナーのユーザー解決に失敗: email=%s, error=%v", business.OwnerEmail, err)
		} else if ownerID != "" {
			userIDs = append(userIDs, ownerID)
		}
	}

	employeeIDs, err := s.registry.ListPermittedEmployeeIDs(ctx, business.ID)
	if err != nil {
		log.Printf("[Push] 従業員権限の取得に失敗: negocio=%s, error=%v", business.ID, err)
		return userIDs
	}

	for _, employeeID := range employeeIDs {
		userID, err := s.registry.FindEmployeeUserID(ctx, employeeID)
		if err != nil {
			log.Printf("[Push] 従業員のユーザー解決に失敗: empleado=%s, error=%v", employeeID, err)
			continue
		}
		if userID == "" || slices.Contains(userIDs, userID) {
			continue
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs
}
