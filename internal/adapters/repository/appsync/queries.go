package appsync

const scoreFields = `id userId gameType score metadata sessionId timestamp displayName`

const historyFields = `id userId gameType gameData playedAt displayName`

const profileFields = `id userId username totalGamesPlayed createdAt lastActiveAt fingerprintQuality xLinked xDisplayName`

const createGameScoreMutation = `mutation CreateGameScore($input: CreateGameScoreInput!) {
  createGameScore(input: $input) { ` + scoreFields + ` }
}`

const listGameScoresQuery = `query ListGameScores($filter: ModelGameScoreFilterInput, $limit: Int, $nextToken: String) {
  listGameScores(filter: $filter, limit: $limit, nextToken: $nextToken) {
    items { ` + scoreFields + ` }
    nextToken
  }
}`

const createGameHistoryMutation = `mutation CreateGameHistory($input: CreateGameHistoryInput!) {
  createGameHistory(input: $input) { ` + historyFields + ` }
}`

const listGameHistoriesQuery = `query ListGameHistories($limit: Int, $nextToken: String) {
  listGameHistories(limit: $limit, nextToken: $nextToken) {
    items { ` + historyFields + ` }
    nextToken
  }
}`

const userProfilesByUserIDQuery = `query UserProfilesByUserId($userId: String!, $limit: Int) {
  userProfilesByUserId(userId: $userId, limit: $limit) {
    items { ` + profileFields + ` }
  }
}`

const createUserProfileMutation = `mutation CreateUserProfile($input: CreateUserProfileInput!) {
  createUserProfile(input: $input) { ` + profileFields + ` }
}`

const updateUserProfileMutation = `mutation UpdateUserProfile($input: UpdateUserProfileInput!) {
  updateUserProfile(input: $input) { ` + profileFields + ` }
}`
