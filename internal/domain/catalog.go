package domain

// Catalog field limits in bytes.
const (
	NameMaxLength = 50
	TagsMaxLength = 128
)

// AiModel is an owner-published model entry.
type AiModel struct {
	Owner      Pubkey `json:"owner"`
	Name       string `json:"name"`
	Framework  uint8  `json:"framework"`
	License    uint8  `json:"license"`
	Type1      uint8  `json:"type1"`
	Type2      uint8  `json:"type2"`
	Tags       string `json:"tags"`
	CreateTime int64  `json:"create_time"`
	UpdateTime int64  `json:"update_time"`
}

// Dataset is an owner-published dataset entry.
type Dataset struct {
	Owner      Pubkey `json:"owner"`
	Name       string `json:"name"`
	Scale      uint8  `json:"scale"`
	License    uint8  `json:"license"`
	Type1      uint8  `json:"type1"`
	Type2      uint8  `json:"type2"`
	Tags       string `json:"tags"`
	CreateTime int64  `json:"create_time"`
	UpdateTime int64  `json:"update_time"`
}

// Statistics aggregates an owner's rewards and earnings.
// All fields only grow, except claimable amounts which are zeroed by a claim.
type Statistics struct {
	Owner                         Pubkey `json:"owner"`
	MachineRewardClaimed          uint64 `json:"machine_reward_claimed"`
	MachineRewardClaimable        uint64 `json:"machine_reward_claimable"`
	AiModelDatasetRewardClaimed   uint64 `json:"ai_model_dataset_reward_claimed"`
	AiModelDatasetRewardClaimable uint64 `json:"ai_model_dataset_reward_claimable"`
	MachineEarning                uint64 `json:"machine_earning"`
	AiModelDatasetEarning         uint64 `json:"ai_model_dataset_earning"`
}
