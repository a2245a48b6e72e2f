package catalog

import (
	"time"

	"github.com/gofrs/uuid"
)

var fallbackCreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

var fallbackProducts = []Product{
	{
		ID:            uuid.Must(uuid.FromString("6f1c2a10-0001-4000-8000-000000000001")),
		Name:          "나이키 에어맥스 97 실버불릿",
		Brand:         "Nike",
		Category:      "스니커즈",
		Price:         189000,
		OriginalPrice: 229000,
		Image:         "👟",
		Country:       "미국",
		Badge:         "HOT",
		Description:   "1997년 첫 출시 이후 아이코닉한 디자인으로 사랑받는 나이키 에어맥스 97. 실버불릿 컬러웨이는 가장 인기 있는 모델 중 하나입니다.",
		Specs:         []string{"풀 렝스 에어 유닛", "메쉬 & 합성 소재 어퍼", "고무 밑창", "리플렉티브 디테일"},
	},
	{
		ID:            uuid.Must(uuid.FromString("6f1c2a10-0002-4000-8000-000000000002")),
		Name:          "샤넬 클래식 플랩백 미디움",
		Brand:         "Chanel",
		Category:      "명품가방",
		Price:         8900000,
		OriginalPrice: 10500000,
		Image:         "👜",
		Country:       "프랑스",
		Badge:         "LUXURY",
		Description:   "샤넬의 시그니처 클래식 플랩백. 캐비어 가죽과 금장 체인이 특징입니다.",
		Specs:         []string{"캐비어 가죽", "골드 체인 스트랩", "더블 플랩 디자인", "버건디 레더 안감"},
	},
	{
		ID:            uuid.Must(uuid.FromString("6f1c2a10-0003-4000-8000-000000000003")),
		Name:          "라메르 크림 60ml",
		Brand:         "La Mer",
		Category:      "화장품",
		Price:         320000,
		OriginalPrice: 420000,
		Image:         "💄",
		Country:       "미국",
		Badge:         "SALE",
		Description:   "전설적인 미라클 브로스를 함유한 라메르 크림. 모든 피부 타입에 적합합니다.",
		Specs:         []string{"미라클 브로스 함유", "60ml 용량", "올 스킨 타입", "집중 보습 케어"},
	},
	{
		ID:            uuid.Must(uuid.FromString("6f1c2a10-0004-4000-8000-000000000004")),
		Name:          "애플 아이폰 16 Pro Max 256GB",
		Brand:         "Apple",
		Category:      "전자기기",
		Price:         1590000,
		OriginalPrice: 1900000,
		Image:         "📱",
		Country:       "미국",
		Badge:         "NEW",
		Description:   "애플의 최신 플래그십 스마트폰. A18 Pro 칩셋과 향상된 카메라 시스템을 갖췄습니다.",
		Specs:         []string{"A18 Pro 칩셋", "6.9인치 Super Retina XDR", "48MP 메인 카메라", "256GB 저장공간"},
	},
	{
		ID:            uuid.Must(uuid.FromString("6f1c2a10-0005-4000-8000-000000000005")),
		Name:          "발렌시아가 트리플S 스니커즈",
		Brand:         "Balenciaga",
		Category:      "스니커즈",
		Price:         890000,
		OriginalPrice: 1100000,
		Image:         "👟",
		Country:       "이탈리아",
		Description:   "어글리 슈즈 트렌드를 이끈 발렌시아가의 아이코닉 스니커즈.",
		Specs:         []string{"트리플 솔 디자인", "이탈리아 제작", "소가죽 & 메쉬", "로고 자수"},
	},
	{
		ID:            uuid.Must(uuid.FromString("6f1c2a10-0006-4000-8000-000000000006")),
		Name:          "닌텐도 스위치 2 콘솔",
		Brand:         "Nintendo",
		Category:      "게임/완구",
		Price:         450000,
		OriginalPrice: 520000,
		Image:         "🎮",
		Country:       "일본",
		Badge:         "HOT",
		Description:   "닌텐도의 차세대 하이브리드 게임 콘솔.",
		Specs:         []string{"8인치 OLED 디스플레이", "4K 독 출력", "향상된 조이콘", "64GB 내장 메모리"},
	},
	{
		ID:            uuid.Must(uuid.FromString("6f1c2a10-0007-4000-8000-000000000007")),
		Name:          "구찌 GG 마몽 미니백",
		Brand:         "Gucci",
		Category:      "명품가방",
		Price:         1890000,
		OriginalPrice: 2300000,
		Image:         "👜",
		Country:       "이탈리아",
		Description:   "구찌의 시그니처 GG 마몽 라인. 더블 G 하드웨어와 마틀라세 가죽이 특징입니다.",
		Specs:         []string{"마틀라세 가죽", "더블 G 장식", "체인 스트랩", "마이크로파이버 안감"},
	},
	{
		ID:            uuid.Must(uuid.FromString("6f1c2a10-0008-4000-8000-000000000008")),
		Name:          "에스티로더 갈색병 에센스 100ml",
		Brand:         "Estee Lauder",
		Category:      "화장품",
		Price:         145000,
		OriginalPrice: 189000,
		Image:         "💄",
		Country:       "미국",
		Badge:         "SALE",
		Description:   "에스티로더의 베스트셀러 갈색병 에센스.",
		Specs:         []string{"크로노럭스 테크놀로지", "100ml 대용량", "피부 장벽 강화", "안티에이징 케어"},
	},
}

// seedProducts is what Seed writes into an empty store.
var seedProducts = []Product{
	fallbackProducts[0],
	fallbackProducts[1],
	fallbackProducts[2],
	fallbackProducts[3],
	{
		Name:          "테스트 상품 (결제 테스트용)",
		Brand:         "TEST",
		Category:      "테스트",
		Price:         100,
		OriginalPrice: 1000,
		Image:         "🧪",
		Country:       "한국",
		Badge:         "TEST",
		Description:   "결제 테스트를 위한 100원 상품입니다.",
		Specs:         []string{"결제 테스트용", "100원", "환불 가능", "테스트 전용"},
	},
}

// Fallback returns a copy of the static list served when the store is empty or unreachable.
func Fallback() []Product {
	out := make([]Product, len(fallbackProducts))
	for i, p := range fallbackProducts {
		p.Specs = append([]string(nil), p.Specs...)
		p.CreatedAt = fallbackCreatedAt
		p.UpdatedAt = fallbackCreatedAt
		out[i] = p
	}
	return out
}

func fallbackByID(id uuid.UUID) (*Product, bool) {
	for _, p := range Fallback() {
		if p.ID == id {
			return &p, true
		}
	}
	return nil, false
}
