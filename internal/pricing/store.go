package pricing

import (
	"context"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/db"
	"pendakian-services/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const promotionColumns = `
	id_promosi, nama_promosi, deskripsi_promosi, tipe_promosi, nilai_promosi,
	coalesce(kondisi_min_pendaki, 1), kondisi_max_pendaki, tanggal_mulai, tanggal_akhir,
	is_aktif, kode_promo
`

func LoadItems(ctx context.Context, q db.Querier) ([]Item, error) {
	rows, err := q.Query(ctx, `
		select id_biaya, nama_item, harga::numeric, deskripsi
		from pengaturan_biaya
		order by id_biaya asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var (
			item  Item
			price pgtype.Numeric
			desc  pgtype.Text
		)
		if err := rows.Scan(&item.ID, &item.Name, &price, &desc); err != nil {
			return nil, err
		}
		item.Price = utils.NumericToRupiah(price)
		if desc.Valid {
			item.Description = &desc.String
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// LoadActivePromotions returns promotions active at now, oldest rule first.
func LoadActivePromotions(ctx context.Context, q db.Querier, now time.Time, code string) ([]Promotion, error) {
	query := `select ` + promotionColumns + `
		from promosi
		where is_aktif = true and tanggal_mulai <= $1 and tanggal_akhir >= $1`
	args := []any{now}
	if code != "" {
		query += ` and kode_promo = $2`
		args = append(args, code)
	}
	query += ` order by id_promosi asc`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPromotions(rows)
}

func ListPromotions(ctx context.Context, q db.Querier) ([]Promotion, error) {
	rows, err := q.Query(ctx, `select `+promotionColumns+` from promosi order by id_promosi asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPromotions(rows)
}

func GetPromotion(ctx context.Context, q db.Querier, id int64) (Promotion, error) {
	rows, err := q.Query(ctx, `select `+promotionColumns+` from promosi where id_promosi = $1`, id)
	if err != nil {
		return Promotion{}, err
	}
	defer rows.Close()
	promos, err := scanPromotions(rows)
	if err != nil {
		return Promotion{}, err
	}
	if len(promos) == 0 {
		return Promotion{}, pgx.ErrNoRows
	}
	return promos[0], nil
}

func scanPromotions(rows pgx.Rows) ([]Promotion, error) {
	out := make([]Promotion, 0)
	for rows.Next() {
		var (
			p        Promotion
			desc     pgtype.Text
			promoTyp string
			value    pgtype.Numeric
			minP     int32
			maxP     pgtype.Int4
			code     pgtype.Text
		)
		if err := rows.Scan(&p.ID, &p.Name, &desc, &promoTyp, &value, &minP, &maxP, &p.StartsAt, &p.EndsAt, &p.IsActive, &code); err != nil {
			return nil, err
		}
		if parsed, ok := ParseType(promoTyp); ok {
			p.Type = parsed
		} else {
			p.Type = PromotionType(promoTyp)
		}
		p.Value = utils.NumericToFloat64(value)
		p.MinClimbers = int(minP)
		if maxP.Valid {
			v := int(maxP.Int32)
			p.MaxClimbers = &v
		}
		if desc.Valid {
			p.Description = &desc.String
		}
		if code.Valid {
			p.Code = &code.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ComputeQuote loads prices and promotions and runs Compute. Missing price
// items fall back to the configured defaults and are logged.
func ComputeQuote(ctx context.Context, q db.Querier, logger *zap.Logger, in Input, defaults Defaults) (Quote, *apperror.Error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	items, err := LoadItems(ctx, q)
	if err != nil {
		return Quote{}, apperror.Upstream("Gagal mengambil data harga", err)
	}
	promotions, err := LoadActivePromotions(ctx, q, in.Now, in.PromoCode)
	if err != nil {
		return Quote{}, apperror.Upstream("Gagal mengambil data promosi", err)
	}

	quote := Compute(items, promotions, in, defaults)
	if logger != nil {
		if quote.EntryPriceFallback {
			logger.Warn("pricing item missing; using default", zap.String("item", ItemEntryTicket), zap.Int64("price", defaults.EntryPrice))
		}
		if quote.ParkingPriceFallback {
			logger.Warn("pricing item missing; using default", zap.String("item", ItemParkingTicket), zap.Int64("price", defaults.ParkingPrice))
		}
		if quote.MatchingPromotions > 1 && quote.AppliedPromotion != nil {
			logger.Info("overlapping promotions matched; oldest applied",
				zap.Int("matching", quote.MatchingPromotions),
				zap.Int64("appliedPromotionId", quote.AppliedPromotion.ID),
				zap.Int("climbers", in.ClimberCount),
			)
		}
	}
	return quote, nil
}

type PromotionInput struct {
	Name        string
	Description *string
	Type        PromotionType
	Value       float64
	MinClimbers int
	MaxClimbers *int
	StartsAt    time.Time
	EndsAt      time.Time
	IsActive    bool
	Code        *string
}

func (in PromotionInput) Validate() *apperror.Error {
	details := map[string]any{}
	if in.Name == "" {
		details["nama_promosi"] = "required"
	}
	if _, ok := ParseType(string(in.Type)); !ok {
		details["tipe_promosi"] = "oneof persentase potongan_tetap harga_tetap"
	}
	if in.Value < 0 {
		details["nilai_promosi"] = "gte 0"
	}
	if in.Type == TypePercentage && in.Value > 100 {
		details["nilai_promosi"] = "lte 100"
	}
	if in.MinClimbers < 1 {
		details["kondisi_min_pendaki"] = "gte 1"
	}
	if in.MaxClimbers != nil && *in.MaxClimbers < in.MinClimbers {
		details["kondisi_max_pendaki"] = "gtefield kondisi_min_pendaki"
	}
	if !in.EndsAt.After(in.StartsAt) {
		details["tanggal_akhir"] = "gtfield tanggal_mulai"
	}
	if len(details) > 0 {
		return apperror.Validation("Data promosi tidak valid", details)
	}
	return nil
}

func CreatePromotion(ctx context.Context, q db.Querier, in PromotionInput) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		insert into promosi (
			nama_promosi, deskripsi_promosi, tipe_promosi, nilai_promosi, kondisi_min_pendaki,
			kondisi_max_pendaki, tanggal_mulai, tanggal_akhir, is_aktif, kode_promo
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		returning id_promosi
	`, in.Name, in.Description, string(in.Type), in.Value, in.MinClimbers, in.MaxClimbers, in.StartsAt, in.EndsAt, in.IsActive, in.Code).Scan(&id)
	return id, err
}

func UpdatePromotion(ctx context.Context, q db.Querier, id int64, in PromotionInput) (bool, error) {
	tag, err := q.Exec(ctx, `
		update promosi set
			nama_promosi = $2, deskripsi_promosi = $3, tipe_promosi = $4, nilai_promosi = $5,
			kondisi_min_pendaki = $6, kondisi_max_pendaki = $7, tanggal_mulai = $8, tanggal_akhir = $9,
			is_aktif = $10, kode_promo = $11
		where id_promosi = $1
	`, id, in.Name, in.Description, string(in.Type), in.Value, in.MinClimbers, in.MaxClimbers, in.StartsAt, in.EndsAt, in.IsActive, in.Code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func DeletePromotion(ctx context.Context, q db.Querier, id int64) (bool, error) {
	tag, err := q.Exec(ctx, `delete from promosi where id_promosi = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func UpdateItem(ctx context.Context, q db.Querier, id int64, price int64, description *string) (bool, error) {
	tag, err := q.Exec(ctx, `
		update pengaturan_biaya set harga = $2, deskripsi = coalesce($3, deskripsi)
		where id_biaya = $1
	`, id, price, description)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
