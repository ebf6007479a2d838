package loans

import (
	"context"
	"fmt"

	"ALMS-backend/internal/inventory/assets"
	"ALMS-backend/internal/platform/roles"
)

// catalogReader は戦略が参照するカタログ読み取りの最小面。
// 本番は Store.Catalog()、テストではフェイクを渡す。
type catalogReader interface {
	AssetStatus(ctx context.Context, assetID int64) (string, error)
	PersonRef(ctx context.Context, personID int64) (*personRef, error)
	PersonByAccount(ctx context.Context, accountID string) (*personRef, error)
	OfficeExists(ctx context.Context, officeID int64) (bool, error)
	DeskOfficeID(ctx context.Context, deskID int64) (int64, error)
	PositionLabel(ctx context.Context, positionID int64) (string, error)
	PositionOnActiveLoan(ctx context.Context, positionID int64) (bool, error)
	DeskOnActiveLoan(ctx context.Context, deskID int64) (bool, error)
}

type personRef struct {
	PersonID   int64
	Department string
}

// targetStrategy はロールごとの貸出先解決。検証に通った場合のみ
// ちょうど1つの貸出先を持つ TargetBinding を返す。
type targetStrategy interface {
	AllowedTargetKinds() []TargetKind
	ValidateAndBind(ctx context.Context, cat catalogReader, actorID string, req CreateLoanRequest) (TargetBinding, error)
}

func strategyFor(role roles.Role) targetStrategy {
	switch role {
	case roles.RoleAdmin:
		return adminStrategy{}
	case roles.RoleCompany:
		return companyStrategy{}
	default:
		return employeeStrategy{}
	}
}

// ---- 共通チェック ----

func checkAssetAvailable(ctx context.Context, cat catalogReader, assetID int64) error {
	status, err := cat.AssetStatus(ctx, assetID)
	if err != nil {
		return err
	}
	if status != assets.StatusAvailable {
		return ErrAssetUnavailable(fmt.Sprintf("asset %d is not available (status=%s)", assetID, status))
	}
	return nil
}

func checkPositionFree(ctx context.Context, cat catalogReader, positionID int64) error {
	busy, err := cat.PositionOnActiveLoan(ctx, positionID)
	if err != nil {
		return err
	}
	if busy {
		return ErrTargetAlreadyAssigned(fmt.Sprintf("position %d already has an active loan", positionID))
	}
	return nil
}

func checkDeskFree(ctx context.Context, cat catalogReader, deskID int64) error {
	busy, err := cat.DeskOnActiveLoan(ctx, deskID)
	if err != nil {
		return err
	}
	if busy {
		return ErrTargetAlreadyAssigned(fmt.Sprintf("desk %d already has an active loan", deskID))
	}
	return nil
}

// desk が office 配下にあるか。desk の存在確認も兼ねる。
func checkDeskInOffice(ctx context.Context, cat catalogReader, deskID, officeID int64) error {
	got, err := cat.DeskOfficeID(ctx, deskID)
	if err != nil {
		return err
	}
	if got != officeID {
		return ErrTargetOfficeMismatch(fmt.Sprintf("desk %d does not belong to office %d", deskID, officeID))
	}
	return nil
}

func checkOfficeExists(ctx context.Context, cat catalogReader, officeID int64) error {
	ok, err := cat.OfficeExists(ctx, officeID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound(fmt.Sprintf("office %d not found", officeID))
	}
	return nil
}

// ---- admin: person / desk / office / department_position ----

type adminStrategy struct{}

func (adminStrategy) AllowedTargetKinds() []TargetKind {
	return []TargetKind{KindPerson, KindDesk, KindOffice, KindPosition}
}

func (adminStrategy) ValidateAndBind(ctx context.Context, cat catalogReader, _ string, req CreateLoanRequest) (TargetBinding, error) {
	if err := checkAssetAvailable(ctx, cat, req.AssetID); err != nil {
		return TargetBinding{}, err
	}

	switch TargetKind(req.TargetType) {
	case KindPerson:
		if req.PersonID == nil {
			return TargetBinding{}, ErrInvalid("person_id is required for target_type=person")
		}
		ref, err := cat.PersonRef(ctx, *req.PersonID)
		if err != nil {
			return TargetBinding{}, err
		}
		b := TargetBinding{Kind: KindPerson, PersonID: ref.PersonID, Department: ref.Department}
		// 座席の指定は任意。指定されたら整合性と空きを確認する。
		if req.DeskID != nil {
			if req.OfficeID != nil {
				if err := checkDeskInOffice(ctx, cat, *req.DeskID, *req.OfficeID); err != nil {
					return TargetBinding{}, err
				}
			} else if _, err := cat.DeskOfficeID(ctx, *req.DeskID); err != nil {
				return TargetBinding{}, err
			}
			if err := checkDeskFree(ctx, cat, *req.DeskID); err != nil {
				return TargetBinding{}, err
			}
			b.DeskID = *req.DeskID
		}
		return b, nil

	case KindDesk:
		if req.DeskID == nil {
			return TargetBinding{}, ErrInvalid("desk_id is required for target_type=desk")
		}
		officeID, err := cat.DeskOfficeID(ctx, *req.DeskID)
		if err != nil {
			return TargetBinding{}, err
		}
		if req.OfficeID != nil && officeID != *req.OfficeID {
			return TargetBinding{}, ErrTargetOfficeMismatch(
				fmt.Sprintf("desk %d does not belong to office %d", *req.DeskID, *req.OfficeID))
		}
		if err := checkDeskFree(ctx, cat, *req.DeskID); err != nil {
			return TargetBinding{}, err
		}
		return TargetBinding{Kind: KindDesk, DeskID: *req.DeskID}, nil

	case KindOffice:
		if req.OfficeID == nil {
			return TargetBinding{}, ErrInvalid("office_id is required for target_type=office")
		}
		if err := checkOfficeExists(ctx, cat, *req.OfficeID); err != nil {
			return TargetBinding{}, err
		}
		return TargetBinding{Kind: KindOffice, OfficeID: *req.OfficeID}, nil

	case KindPosition:
		if req.PositionID == nil {
			return TargetBinding{}, ErrInvalid("position_id is required for target_type=department_position")
		}
		if _, err := cat.PositionLabel(ctx, *req.PositionID); err != nil {
			return TargetBinding{}, err
		}
		if err := checkPositionFree(ctx, cat, *req.PositionID); err != nil {
			return TargetBinding{}, err
		}
		// person 以外は部署スナップショットを空にする
		return TargetBinding{Kind: KindPosition, PositionID: *req.PositionID}, nil

	default:
		return TargetBinding{}, ErrInvalid("target_type must be one of person, desk, office, department_position")
	}
}

// ---- company: office / department_position ----

type companyStrategy struct{}

func (companyStrategy) AllowedTargetKinds() []TargetKind {
	return []TargetKind{KindOffice, KindPosition}
}

func (companyStrategy) ValidateAndBind(ctx context.Context, cat catalogReader, _ string, req CreateLoanRequest) (TargetBinding, error) {
	if err := checkAssetAvailable(ctx, cat, req.AssetID); err != nil {
		return TargetBinding{}, err
	}

	switch TargetKind(req.TargetType) {
	case KindOffice:
		if req.OfficeID == nil {
			return TargetBinding{}, ErrInvalid("office_id is required for target_type=office")
		}
		if err := checkOfficeExists(ctx, cat, *req.OfficeID); err != nil {
			return TargetBinding{}, err
		}
		b := TargetBinding{Kind: KindOffice, OfficeID: *req.OfficeID}
		if req.Department != nil {
			b.Department = *req.Department
		}
		return b, nil

	case KindPosition:
		if req.PositionID == nil {
			return TargetBinding{}, ErrInvalid("position_id is required for target_type=department_position")
		}
		label, err := cat.PositionLabel(ctx, *req.PositionID)
		if err != nil {
			return TargetBinding{}, err
		}
		if err := checkPositionFree(ctx, cat, *req.PositionID); err != nil {
			return TargetBinding{}, err
		}
		return TargetBinding{Kind: KindPosition, PositionID: *req.PositionID, Department: label}, nil

	default:
		return TargetBinding{}, ErrInvalid("target_type must be office or department_position")
	}
}

// ---- employee: 本人への貸出のみ ----

type employeeStrategy struct{}

func (employeeStrategy) AllowedTargetKinds() []TargetKind {
	return []TargetKind{KindPerson}
}

// 貸出先は操作者自身の Person。user_id のリンクを優先し、
// なければメールアドレス一致で解決する。office と desk は必須。
func (employeeStrategy) ValidateAndBind(ctx context.Context, cat catalogReader, actorID string, req CreateLoanRequest) (TargetBinding, error) {
	if err := checkAssetAvailable(ctx, cat, req.AssetID); err != nil {
		return TargetBinding{}, err
	}

	ref, err := cat.PersonByAccount(ctx, actorID)
	if err != nil {
		return TargetBinding{}, err
	}
	if ref == nil {
		return TargetBinding{}, ErrProfileNotLinked("no person profile is linked to your account")
	}

	if req.OfficeID == nil || req.DeskID == nil {
		return TargetBinding{}, ErrInvalid("office_id and desk_id are required")
	}
	if err := checkDeskInOffice(ctx, cat, *req.DeskID, *req.OfficeID); err != nil {
		return TargetBinding{}, err
	}
	if err := checkDeskFree(ctx, cat, *req.DeskID); err != nil {
		return TargetBinding{}, err
	}

	return TargetBinding{
		Kind:       KindPerson,
		PersonID:   ref.PersonID,
		DeskID:     *req.DeskID,
		Department: ref.Department,
	}, nil
}
