package common

// TokenTypeBearer is the token_type value reported with every issued
// token pair.
const TokenTypeBearer = "Bearer"
